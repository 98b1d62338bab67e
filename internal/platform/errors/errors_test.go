package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeDecisionNotCurrent, "decision is not current")
	err := WithMetadata(CodeDecisionNotCurrent, "decision d2 is not current", map[string]string{"DecisionID": "d2"})

	if !stderrors.Is(fmt.Errorf("select: %w", err), sentinel) {
		t.Fatal("expected wrapped error to match sentinel by code")
	}
	if stderrors.Is(err, New(CodeDecisionOptionNotFound, "other")) {
		t.Fatal("expected different code not to match")
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "save session", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "save session" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "save session")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("outer: %w", New(CodeNotFound, "missing"))); got != CodeNotFound {
		t.Fatalf("CodeOf = %s, want %s", got, CodeNotFound)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf = %s, want %s", got, CodeUnknown)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeDecisionOptionNotFound, codes.InvalidArgument},
		{CodeDecisionNotCurrent, codes.FailedPrecondition},
		{CodeSessionGenerating, codes.FailedPrecondition},
		{CodeCatalogEntryNotFound, codes.NotFound},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Fatalf("%s.GRPCCode() = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestGRPCStatusAttachesDetails(t *testing.T) {
	err := WithMetadata(CodeDecisionOptionNotFound, "option o9 not in decision d1", map[string]string{"OptionID": "o9"})
	st, ok := status.FromError(fmt.Errorf("select: %w", err))
	if !ok {
		t.Fatal("expected gRPC status")
	}
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("status code = %s, want %s", st.Code(), codes.InvalidArgument)
	}

	var info *errdetails.ErrorInfo
	for _, detail := range st.Details() {
		if d, ok := detail.(*errdetails.ErrorInfo); ok {
			info = d
		}
	}
	if info == nil || info.GetReason() != string(CodeDecisionOptionNotFound) || info.GetDomain() != Domain {
		t.Fatalf("unexpected error info: %+v", info)
	}
	if info.GetMetadata()["OptionID"] != "o9" {
		t.Fatalf("metadata = %v, want OptionID=o9", info.GetMetadata())
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "plain", err: stderrors.New("boom"), want: ""},
		{name: "code only", err: New(CodeSessionGenerating, "busy"), want: "SESSION_GENERATING"},
		{
			name: "sorted metadata",
			err: fmt.Errorf("outer: %w", WithMetadata(CodeDecisionNotCurrent, "stale",
				map[string]string{"SessionID": "s1", "DecisionID": "d2"})),
			want: "DECISION_NOT_CURRENT DecisionID=d2 SessionID=s1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Fatalf("Describe = %q, want %q", got, tt.want)
			}
		})
	}
}
