package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/llm-inline/llmi/pkg/telemetry"
	"github.com/llm-inline/llmi/pkg/version"
)

var (
	tracingShutdown func(context.Context) error
	commandSpan     trace.Span
)

func initTracing(ctx context.Context) (func(context.Context) error, error) {
	return telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "llmi",
		ServiceVersion: version.Version,
		SamplerType:    cfg.Tracing.Sampler,
		SamplerRatio:   cfg.Tracing.Ratio,
	})
}

// startCommandSpan opens the root span of a CLI invocation and stores it
// in the command's context
func startCommandSpan(cmd *cobra.Command, args []string) {
	attrs := []attribute.KeyValue{
		attribute.String("command.name", cmd.Name()),
		attribute.String("command.path", cmd.CommandPath()),
		attribute.Int("args.count", len(args)),
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
	})

	ctx, span := telemetry.Tracer("llmi.cli").Start(cmd.Context(), "cli.command", trace.WithAttributes(attrs...))
	cmd.SetContext(ctx)
	commandSpan = span
}

func endCommandSpan(err error) {
	if commandSpan == nil {
		return
	}
	if err != nil {
		commandSpan.RecordError(err)
		commandSpan.SetStatus(codes.Error, err.Error())
	} else {
		commandSpan.SetStatus(codes.Ok, "")
	}
	commandSpan.End()
}
