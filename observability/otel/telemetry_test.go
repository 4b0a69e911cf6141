package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"farmmarket/config"
)

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders(" api-key = abc ,broken, =x,tenant=farm ")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "farm"}, headers)
	require.Empty(t, parseHeaders(""))
}

func TestParseCollector(t *testing.T) {
	cases := []struct {
		name     string
		cfg      config.Telemetry
		host     string
		insecure bool
		wantErr  bool
	}{
		{name: "default", cfg: config.Telemetry{Insecure: true}, host: "localhost:4318", insecure: true},
		{name: "host port keeps flag", cfg: config.Telemetry{Endpoint: "otel:4318"}, host: "otel:4318"},
		{name: "http url", cfg: config.Telemetry{Endpoint: "http://otel:4318"}, host: "otel:4318", insecure: true},
		{name: "https url", cfg: config.Telemetry{Endpoint: "https://otel.example.com/", Insecure: true}, host: "otel.example.com"},
		{name: "bad scheme", cfg: config.Telemetry{Endpoint: "grpc://otel:4317"}, wantErr: true},
		{name: "path", cfg: config.Telemetry{Endpoint: "http://otel:4318/v1/traces"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target, err := parseCollector(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.host, target.host)
			require.Equal(t, tc.insecure, target.insecure)
		})
	}
}

func TestSamplerRatio(t *testing.T) {
	require.Contains(t, sampler(0).Description(), "root:AlwaysOnSampler")
	require.Contains(t, sampler(1).Description(), "root:AlwaysOnSampler")
	require.Contains(t, sampler(0.25).Description(), "root:TraceIDRatioBased{0.25}")
}

func TestStartDisabledIsInert(t *testing.T) {
	providers, err := Start(context.Background(), "farmd", "dev", "test", config.Telemetry{})
	require.NoError(t, err)
	require.False(t, providers.Enabled())
	require.NoError(t, providers.Shutdown(context.Background()))

	_, err = Start(context.Background(), " ", "", "", config.Telemetry{Traces: true})
	require.Error(t, err)

	_, err = Start(context.Background(), "farmd", "", "", config.Telemetry{Traces: true, Endpoint: "ftp://x"})
	require.Error(t, err)
}

func TestStartInstallsTracerProvider(t *testing.T) {
	providers, err := Start(context.Background(), "farmd", "dev", "test", config.Telemetry{
		Endpoint:    "http://127.0.0.1:4318",
		Traces:      true,
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	require.True(t, providers.Enabled())
	require.Same(t, providers.tracer, otel.GetTracerProvider())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, providers.Shutdown(ctx))
}
