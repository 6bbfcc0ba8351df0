package geyser

import (
	"testing"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

func TestBackoff_DoublesAndSaturates(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	bo := newBackoff()
	for i, expected := range want {
		if got := bo.fail(); got != expected {
			t.Fatalf("failure %d: expected delay %v, got %v", i, expected, got)
		}
	}
}

func TestBackoff_ResetsAfterSuccessfulSession(t *testing.T) {
	bo := newBackoff()
	for i := 0; i < 6; i++ {
		bo.fail()
	}
	if got := bo.fail(); got != maxReconnectDelay {
		t.Fatalf("expected saturated delay %v, got %v", maxReconnectDelay, got)
	}

	bo.reset()

	// After a session delivers messages the policy starts over.
	if got := bo.fail(); got != initialReconnectDelay {
		t.Fatalf("expected delay %v after reset, got %v", initialReconnectDelay, got)
	}
	if got := bo.fail(); got != 2*initialReconnectDelay {
		t.Fatalf("expected delay %v after reset, got %v", 2*initialReconnectDelay, got)
	}
}

func TestSubscribeRequest_Shape(t *testing.T) {
	s := NewSubscriber(Config{
		Endpoint:  "https://example.com",
		ProgramID: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
	}, nil, nil, nil)

	req := s.subscribeRequest()

	filter, ok := req.Transactions["pump_fun"]
	if !ok {
		t.Fatal("missing pump_fun transaction filter")
	}
	if len(filter.AccountInclude) != 1 || filter.AccountInclude[0] != s.cfg.ProgramID {
		t.Errorf("wrong account_include: %v", filter.AccountInclude)
	}
	if filter.Vote == nil || *filter.Vote {
		t.Error("vote transactions must be excluded")
	}
	if filter.Failed == nil || *filter.Failed {
		t.Error("failed transactions must be excluded")
	}
	if filter.Signature != nil {
		t.Error("no signature constraint expected")
	}
	if len(filter.AccountExclude) != 0 || len(filter.AccountRequired) != 0 {
		t.Error("no account exclude/required entries expected")
	}

	if req.Commitment == nil || *req.Commitment != pb.CommitmentLevel_PROCESSED {
		t.Errorf("expected processed commitment, got %v", req.Commitment)
	}
	if len(req.Accounts) != 0 || len(req.Slots) != 0 || len(req.Blocks) != 0 ||
		len(req.BlocksMeta) != 0 || len(req.Entry) != 0 || len(req.TransactionsStatus) != 0 {
		t.Error("all other filter categories must be empty")
	}
}

func TestGrpcTarget(t *testing.T) {
	cases := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{endpoint: "https://fr.grpc.gadflynode.com:25565", want: "fr.grpc.gadflynode.com:25565"},
		{endpoint: "https://grpc.example.com", want: "grpc.example.com:443"},
		{endpoint: "grpc.example.com:10000", want: "grpc.example.com:10000"},
		{endpoint: "grpc.example.com", want: "grpc.example.com:443"},
		{endpoint: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := grpcTarget(tc.endpoint)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.endpoint)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.endpoint, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: expected %q, got %q", tc.endpoint, tc.want, got)
		}
	}
}
