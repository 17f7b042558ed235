// Package testutil provides testing utilities and helpers for live demo tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/livedemo/internal/compiler"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/render"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
)

// EntryFile is the entry path used by CreateTestDemo
const EntryFile = "index.jsx"

// MockCompiler is a mock implementation of compiler.Compiler for testing.
type MockCompiler struct {
	mock.Mock
}

// Compile mocks the Compile method.
func (m *MockCompiler) Compile(ctx context.Context, code string, meta compiler.Meta) (string, error) {
	args := m.Called(ctx, code, meta)
	if fn, ok := args.Get(0).(func(context.Context, string, compiler.Meta) string); ok {
		return fn(ctx, code, meta), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

// MockRenderer is a mock external renderer for testing custom pipelines.
type MockRenderer struct {
	mock.Mock
}

// Render mocks the Render method.
func (m *MockRenderer) Render(ctx context.Context, canvas *render.Node, component sandbox.Component) error {
	args := m.Called(ctx, canvas, component)
	return args.Error(0)
}

// NewMockCompiler creates a mock compiler that returns its input unchanged.
func NewMockCompiler(t *testing.T) *MockCompiler {
	t.Helper()
	m := new(MockCompiler)

	// Default behavior: identity compile
	m.On("Compile", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, code string, _ compiler.Meta) string { return code }, nil).
		Maybe()

	return m
}

// NewMockRenderer creates a mock renderer that always succeeds.
func NewMockRenderer(t *testing.T) *MockRenderer {
	t.Helper()
	m := new(MockRenderer)

	// Default behavior: render succeeds
	m.On("Render", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Maybe()

	return m
}

// Modules returns the host modules every test demo may require.
func Modules() sandbox.Dependencies {
	return render.HostModules()
}

// CreateTestDemo creates a same-document demo whose entry file holds code.
func CreateTestDemo(t *testing.T, demoID string, code string) *demo.Demo {
	t.Helper()

	return &demo.Demo{
		ID:    id.DemoID(demoID),
		Title: "Test Demo",
		Asset: demo.Asset{
			ID: demoID,
			Dependencies: map[string]demo.Dependency{
				EntryFile: {Type: demo.TypeFile, Value: code},
				"react":   {Type: demo.TypeNPM, Value: "^18.0.0"},
			},
		},
		Context: Modules(),
	}
}

// Source returns a demo source holding code as the entry file.
func Source(code string) demo.Source {
	return demo.Source{EntryFile: code}
}
