package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livedemo/internal/compiler"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/render"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
)

// LocalConfig configures a LocalFrame
type LocalConfig struct {
	ID       string
	Asset    demo.Asset
	Context  sandbox.Dependencies
	Compiler compiler.Compiler // nil evaluates the entry source as-is
	Sandbox  sandbox.Config
	Logger   *logging.Logger
}

// LocalFrame is an in-process isolated context. It owns its evaluator,
// validator and mount, and answers every setSource with exactly one
// completion message, in arrival order.
type LocalFrame struct {
	cfg       LocalConfig
	evaluator *sandbox.Evaluator
	validator *render.Validator
	mount     *render.Mount
	logger    *logging.Logger
	listeners listenerSet

	mu     sync.Mutex
	queue  []Message
	closed bool
	wake   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLocalFrame creates and starts a local frame
func NewLocalFrame(cfg LocalConfig) (*LocalFrame, error) {
	mount, err := render.NewMount(cfg.ID)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &LocalFrame{
		cfg:       cfg,
		evaluator: sandbox.NewEvaluator(cfg.Sandbox),
		validator: render.NewValidator(),
		mount:     mount,
		logger:    cfg.Logger.Named("frame"),
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go f.loop()
	return f, nil
}

// PostMessage queues msg for the frame
func (f *LocalFrame) PostMessage(msg Message) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.queue = append(f.queue, msg)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
	return nil
}

// AddListener implements Frame
func (f *LocalFrame) AddListener(l Listener) func() {
	return f.listeners.add(l)
}

// HTML returns the frame's rendered content
func (f *LocalFrame) HTML() string {
	return f.mount.HTML()
}

// Close stops the frame; queued messages are dropped
func (f *LocalFrame) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.queue = nil
	f.mu.Unlock()

	f.cancel()
	<-f.done
	return nil
}

func (f *LocalFrame) next() (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Message{}, false
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, true
}

func (f *LocalFrame) loop() {
	defer close(f.done)

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-f.wake:
		}

		for {
			msg, ok := f.next()
			if !ok {
				break
			}
			f.handle(msg)
		}
	}
}

func (f *LocalFrame) handle(msg Message) {
	if msg.Type != TypeSetSource {
		return
	}

	var src demo.Source
	err := msg.Decode(&src)
	if err == nil {
		err = f.run(f.ctx, src)
	}
	if f.ctx.Err() != nil {
		return
	}

	reply := CompileDone{}
	typ := TypeCompileOK
	if err != nil {
		reply.Err = toRemoteError(err)
		typ = TypeCompileFail
		f.logger.Debug("frame run failed", zap.Error(err))
	}

	out, encErr := NewMessage(typ, reply)
	if encErr != nil {
		f.logger.Error("encode completion", zap.Error(encErr))
		return
	}
	out.ID = msg.ID
	f.listeners.dispatch(out)
}

func (f *LocalFrame) run(ctx context.Context, src demo.Source) error {
	entry, err := f.cfg.Asset.EntryFile()
	if err != nil {
		return err
	}
	code, ok := src[entry]
	if !ok {
		return fmt.Errorf("entry file %s missing from source", entry)
	}

	if f.cfg.Compiler != nil {
		if code, err = f.cfg.Compiler.Compile(ctx, code, compiler.Meta{Filename: entry}); err != nil {
			return err
		}
	}

	ec := f.evaluator.NewContext(f.cfg.Context)
	if err := f.evaluator.Evaluate(ctx, code, ec); err != nil {
		return err
	}
	component, err := ec.Component()
	if err != nil {
		return err
	}

	node := render.NewElementNode(component, f.evaluator.Config().Timeout)
	if err := f.validator.Validate(ctx, node); err != nil {
		return err
	}
	return f.mount.Commit(ctx, node)
}

func toRemoteError(err error) *RemoteError {
	re := &RemoteError{Name: "Error", Message: err.Error()}

	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		re.Name = "CompileError"
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		re.Stack = exc.String()
	}
	return re
}
