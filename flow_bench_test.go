package authflow

import (
	"context"
	"testing"
	"time"
)

func BenchmarkSubmitIdentifierKnown(b *testing.B) {
	backend := newStubBackend()
	backend.exists = true
	flow := buildTestFlow(b, backend)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if t := flow.SubmitIdentifier(ctx, "user@example.com", KindEmail); t.To != StepPassword {
			b.Fatalf("unexpected step %s", t.To)
		}
	}
}

func BenchmarkSubmitPasswordParallel(b *testing.B) {
	flow := buildTestFlow(b, newStubBackend())
	fc := FlowContext{Identifier: Identifier{Value: "user@example.com", Kind: KindEmail}, Journey: JourneyLogin}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			flow.SubmitPassword(ctx, fc, "Secret#123")
		}
	})
}

func BenchmarkValidateRegistration(b *testing.B) {
	draft := RegistrationDraft{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Password:        "Secret#123",
		ConfirmPassword: "Secret#123",
	}
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if v := ValidateRegistration(draft); len(v) != 0 {
			b.Fatalf("unexpected violations %v", v)
		}
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	ids := [...]MetricID{MetricIdentifierKnown, MetricOTPSendSuccess, MetricLoginSuccess, MetricLoginFailure}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Inc(ids[i%len(ids)])
			i++
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricBackendLatency, 120*time.Millisecond)
		}
	})
}
