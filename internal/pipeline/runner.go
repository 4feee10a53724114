package pipeline

import (
	"context"
	"errors"
	"fmt"

	"finscraper/internal/assert"
	"finscraper/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_runner_structure = "runner.structure"
	report_runner_run       = "runner.run"
	report_runner_adapter   = "runner.adapter"
)

const (
	stage_main    = "main"
	stage_cleanup = "cleanup"
)

var tracer = otel.Tracer("finscraper/pipeline")
var meter = otel.Meter("finscraper/pipeline")
var executionCounter = func() metric.Int64Counter {
	counter, err := meter.Int64Counter(
		"pipeline.adapter.executions",
		metric.WithDescription("adapter executions by stage and status"),
	)
	if err != nil {
		panic(err)
	}
	return counter
}()

// Options configures a single run.
type Options struct {
	// OnProgress receives every progress notification, it may be nil.
	OnProgress ProgressFunc
	// OnCleanupError receives the errors of cleanup adapters, which never affect the
	// outcome. It may be nil.
	OnCleanupError func(adapterName string, err error)
}

// Runner executes pipelines. It holds no per-run state, one Runner may execute any number
// of runs, concurrently or not.
type Runner struct {
	tel telemetry.API
}

func NewRunner(tel telemetry.API) Runner {
	assert.NotNil(tel)
	return Runner{tel: telemetry.NewScopedAPI("pipeline", tel)}
}

func transition(span trace.Span, state State) {
	span.AddEvent(string(state))
	span.SetAttributes(attribute.String("pipeline.state", string(state)))
}

// Run executes `main` in order until one adapter fails, then executes every adapter of
// `cleanup` in order, and returns the outcome of the main adapters.
func (r Runner) Run(ctx context.Context, opts Options, main, cleanup []Adapter) Outcome {
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.Int("pipeline.main_count", len(main)),
		attribute.Int("pipeline.cleanup_count", len(cleanup)),
	))
	defer span.End()
	transition(span, STATE_INIT)

	transition(span, STATE_VALIDATING_STRUCTURE)
	problems := structureProblems(main)
	if len(problems) > 0 {
		message := joinProblems(problems)
		r.tel.ReportBroken(report_runner_structure, message)
		span.SetStatus(codes.Error, message)
		transition(span, STATE_FAILED_STRUCTURE)
		return failureOutcome(GENERAL_ERROR, message)
	}

	shared := newSharedContext(opts.OnProgress)

	transition(span, STATE_RUNNING_MAIN)
	var outcome Outcome
	err := r.runMain(ctx, shared, main)
	if err != nil {
		transition(span, STATE_MAIN_FAILED)
		span.SetStatus(codes.Error, err.Error())
		if shared.terminal != nil {
			outcome = *shared.terminal
		} else {
			outcome = failureOutcome(GENERAL_ERROR, err.Error())
		}
		r.tel.ReportDebug(report_runner_run, "main adapters failed", outcome.ErrorType, outcome.ErrorMessage)
	} else {
		transition(span, STATE_MAIN_OK)
		outcome = Outcome{Success: true, Data: shared.data}
		// cleanup adapters may still add data, they must not reach the returned map.
		shared.data = cloneData(shared.data)
	}

	transition(span, STATE_RUNNING_CLEANUP)
	r.runCleanup(context.WithoutCancel(ctx), shared, cleanup, opts.OnCleanupError)

	transition(span, STATE_DONE)
	return outcome
}

func (r Runner) runMain(ctx context.Context, shared *sharedContext, adapters []Adapter) error {
	for _, adapter := range adapters {
		err := r.runAdapter(ctx, shared, adapter, stage_main)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r Runner) runCleanup(
	ctx context.Context,
	shared *sharedContext,
	adapters []Adapter,
	onError func(string, error),
) {
	for i, adapter := range adapters {
		var err error
		if problems := structureProblems([]Adapter{adapter}); len(problems) > 0 {
			err = fmt.Errorf("cleanup adapter at index %d: %s", i, joinProblems(problems))
		} else {
			err = r.runAdapter(ctx, shared, adapter, stage_cleanup)
		}
		if err != nil && onError != nil {
			onError(adapter.Name, err)
		}
	}
}

func (r Runner) runAdapter(ctx context.Context, shared *sharedContext, adapter Adapter, stage string) (err error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("adapter %s", adapter.Name), trace.WithAttributes(
		attribute.String("pipeline.adapter", adapter.Name),
		attribute.String("pipeline.stage", stage),
	))
	defer span.End()

	view := newView(adapter.Name, shared)
	status := "ok"
	defer func() {
		if err != nil {
			view.NotifyProgress(FAILED_ADAPTER)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			// cleanup errors belong to OnCleanupError only
			if stage == stage_main {
				r.tel.ReportDebug(report_runner_adapter, adapter.Name, err)
			}
		}
		executionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("adapter", adapter.Name),
			attribute.String("stage", stage),
			attribute.String("status", status),
		))
	}()

	view.NotifyProgress(VALIDATE_ADAPTER)
	problems, err := callValidate(ctx, adapter, view)
	if err != nil {
		status = "panicked"
		return err
	}
	if len(problems) > 0 {
		status = "invalid"
		return &ValidationError{Adapter: adapter.Name, Problems: problems}
	}

	view.NotifyProgress(START_ADAPTER)
	result, err := callAction(ctx, adapter, view)
	if err != nil {
		status = "failed"
		var failure *FailureError
		if errors.As(err, &failure) {
			shared.setTerminalError(failure.outcome())
		}
		return err
	}

	if result != nil && result.Failed {
		status = "failed"
		failure := &FailureError{Type: result.ErrorType, Message: result.ErrorMessage}
		shared.setTerminalError(failure.outcome())
		return failure
	}
	if result != nil && result.Data != nil {
		shared.mergeData(result.Data)
	}

	view.NotifyProgress(END_ADAPTER)
	return nil
}

func callValidate(ctx context.Context, adapter Adapter, view *View) (problems []string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &AdapterPanicError{Adapter: adapter.Name, Value: recovered}
		}
	}()
	return adapter.Validate(ctx, view), nil
}

func callAction(ctx context.Context, adapter Adapter, view *View) (result *ActionResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &AdapterPanicError{Adapter: adapter.Name, Value: recovered}
		}
	}()
	return adapter.Action(ctx, view)
}
