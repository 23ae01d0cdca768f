package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/TomasB/ip2country/internal/geoip"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type mockResolver struct {
	result   *geoip.Result
	err      error
	codeOnly bool
}

func (m *mockResolver) Resolve(_ context.Context, _ string, codeOnly bool) (*geoip.Result, error) {
	m.codeOnly = codeOnly
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func TestResolve(t *testing.T) {
	m := &mockResolver{result: &geoip.Result{Code: "NZ", Name: "New Zealand"}}
	h := NewHandler(m)

	resp, err := h.Resolve(context.Background(), wrapperspb.String("203.96.152.4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Fields["code"].GetStringValue(); got != "NZ" {
		t.Errorf("expected code NZ, got %s", got)
	}
	if got := resp.Fields["name"].GetStringValue(); got != "New Zealand" {
		t.Errorf("expected name New Zealand, got %s", got)
	}
	if m.codeOnly {
		t.Error("expected full resolution")
	}
}

func TestResolveWithoutName(t *testing.T) {
	h := NewHandler(&mockResolver{result: &geoip.Result{Code: "US"}})

	resp, err := h.Resolve(context.Background(), wrapperspb.String("8.8.8.8"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := resp.Fields["name"]; ok {
		t.Error("expected name to be omitted")
	}
}

func TestResolveCode(t *testing.T) {
	m := &mockResolver{result: &geoip.Result{Code: "AU"}}
	h := NewHandler(m)

	resp, err := h.ResolveCode(context.Background(), wrapperspb.String("2001:db8::1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetValue() != "AU" {
		t.Errorf("expected AU, got %s", resp.GetValue())
	}
	if !m.codeOnly {
		t.Error("expected code-only resolution")
	}
}

func TestResolveInvalidInput(t *testing.T) {
	h := NewHandler(&mockResolver{result: &geoip.Result{Code: "US"}})

	_, err := h.Resolve(context.Background(), nil)
	assertCode(t, err, codes.InvalidArgument)

	_, err = h.Resolve(context.Background(), wrapperspb.String(""))
	assertCode(t, err, codes.InvalidArgument)

	_, err = h.ResolveCode(context.Background(), wrapperspb.String("not-an-ip"))
	assertCode(t, err, codes.InvalidArgument)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"disabled", geoip.ErrDisabled, codes.FailedPrecondition},
		{"no resolution", geoip.ErrNoResolution, codes.NotFound},
		{"other", errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockResolver{err: tt.err})
			_, err := h.ResolveCode(context.Background(), wrapperspb.String("1.2.3.4"))
			assertCode(t, err, tt.want)
		})
	}
}

func TestServiceRoundTrip(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	Register(s, NewHandler(&mockResolver{result: &geoip.Result{Code: "NZ", Name: "New Zealand"}}))
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	full := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/Resolve", wrapperspb.String("203.96.152.4"), full); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := full.Fields["name"].GetStringValue(); got != "New Zealand" {
		t.Errorf("expected name New Zealand, got %s", got)
	}

	code := new(wrapperspb.StringValue)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/ResolveCode", wrapperspb.String("203.96.152.4"), code); err != nil {
		t.Fatalf("ResolveCode failed: %v", err)
	}
	if code.GetValue() != "NZ" {
		t.Errorf("expected NZ, got %s", code.GetValue())
	}

	err = conn.Invoke(ctx, "/"+ServiceName+"/ResolveCode", wrapperspb.String("bogus"), code)
	assertCode(t, err, codes.InvalidArgument)
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %v, got nil", want)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != want {
		t.Errorf("expected code %v, got %v", want, st.Code())
	}
}
