package compute

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// mockDevice implements gpucontext.Device for testing.
type mockDevice struct {
	polls atomic.Int32
}

func (m *mockDevice) Poll(wait bool) {
	if wait {
		m.polls.Add(1)
	}
}
func (m *mockDevice) Destroy() {}

type mockQueue struct{}

type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider for testing.
type mockProvider struct {
	device *mockDevice
}

func (m *mockProvider) Device() gpucontext.Device             { return m.device }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (m *mockProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "mock", Type: gpucontext.AdapterTypeSoftware}
}

// plainDevice is a device without a Poll method.
type plainDevice struct{}

type plainProvider struct{ mockProvider }

func (plainProvider) Device() gpucontext.Device { return plainDevice{} }

const testWGSL = `
struct Params {
    count: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> src: array<u32>;
@group(0) @binding(2) var<storage, read_write> dst: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.x;
    if (i >= params.count) {
        return;
    }
    dst[i] = src[i];
}
`

func TestNewContextDefaults(t *testing.T) {
	c := NewContext()
	defer c.Close()

	if c.HasDevice() {
		t.Error("context without provider reports a device")
	}
	if _, ok := c.DeviceProvider().(NullDevice); !ok {
		t.Errorf("DeviceProvider() = %T, want NullDevice", c.DeviceProvider())
	}
	if c.SurfaceFormat() != gputypes.TextureFormatUndefined {
		t.Errorf("SurfaceFormat() = %v, want Undefined", c.SurfaceFormat())
	}
	// Wait on an idle CPU-only context returns immediately.
	c.Wait()
}

func TestContextWithDevice(t *testing.T) {
	dev := &mockDevice{}
	c := NewContext(WithDeviceProvider(&mockProvider{device: dev}), WithWorkers(2))
	defer c.Close()

	if !c.HasDevice() {
		t.Fatal("HasDevice() = false with a provider")
	}
	if c.SurfaceFormat() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("SurfaceFormat() = %v", c.SurfaceFormat())
	}

	done := make(chan struct{})
	if err := c.Submit(Task{Done: func(error) { close(done) }}); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	<-done
	c.Wait()
	if dev.polls.Load() != 1 {
		t.Errorf("device polled %d times, want 1", dev.polls.Load())
	}
	if info := c.AdapterInfo(); info.Name != "mock" || info.Type != gpucontext.AdapterTypeSoftware {
		t.Errorf("AdapterInfo() = %+v", info)
	}
}

func TestContextWaitWithoutPoll(t *testing.T) {
	c := NewContext(WithDeviceProvider(&plainProvider{}))
	defer c.Close()

	if !c.HasDevice() {
		t.Fatal("HasDevice() = false with a provider")
	}
	// A device without Poll is not waited on.
	c.Wait()
}

func TestNullDeviceAdapterInfo(t *testing.T) {
	if got := (NullDevice{}).AdapterInfo().Type; got != gpucontext.AdapterTypeUnknown {
		t.Errorf("AdapterInfo().Type = %v, want Unknown", got)
	}
}

func TestContextClose(t *testing.T) {
	c := NewContext()
	c.Close()
	c.Close()

	if !c.Closed() {
		t.Error("Closed() = false after Close")
	}
	if err := c.Submit(Task{}); !errors.Is(err, ErrContextClosed) {
		t.Errorf("Submit() after Close = %v, want ErrContextClosed", err)
	}
	if _, err := c.Program("copy", testWGSL); !errors.Is(err, ErrContextClosed) {
		t.Errorf("Program() after Close = %v, want ErrContextClosed", err)
	}
}

func TestCompile(t *testing.T) {
	p, err := Compile("copy", testWGSL)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	if !p.Valid() {
		t.Errorf("compiled program is not a SPIR-V module: first word %#x", p.SPIRV[0])
	}
	if p.Label != "copy" || p.Source != testWGSL {
		t.Errorf("Program = {%q, ...}", p.Label)
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := Compile("empty", ""); !errors.Is(err, ErrCompile) {
		t.Errorf("Compile(empty) = %v, want ErrCompile", err)
	}
	if _, err := Compile("broken", "fn main( {"); !errors.Is(err, ErrCompile) {
		t.Errorf("Compile(broken) = %v, want ErrCompile", err)
	}
	var nilProgram *Program
	if nilProgram.Valid() {
		t.Error("nil program reports Valid")
	}
}

func TestContextProgramCache(t *testing.T) {
	c := NewContext()
	defer c.Close()

	a, err := c.Program("copy", testWGSL)
	if err != nil {
		t.Fatalf("Program() = %v", err)
	}
	b, err := c.Program("copy", testWGSL)
	if err != nil {
		t.Fatalf("Program() = %v", err)
	}
	if a != b {
		t.Error("Program() compiled the same source twice")
	}
	if _, err := c.Program("broken", "not wgsl"); !errors.Is(err, ErrCompile) {
		t.Errorf("Program(broken) = %v, want ErrCompile", err)
	}
}
