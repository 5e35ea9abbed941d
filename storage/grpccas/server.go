package grpccas

import (
	"context"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/collapse/digest"
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/certstore"
)

// Server exposes a storage.CAS over the CAS gRPC service. It re-derives CIDs
// on both Put and Get, so a misbehaving backend cannot serve wrong bytes.
type Server struct {
	CAS storage.CAS
}

var _ CASServer = (*Server)(nil)

func (s *Server) backend() (storage.CAS, error) {
	if s == nil || s.CAS == nil {
		return nil, errNoCAS
	}
	return s.CAS, nil
}

func (s *Server) Put(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	cas, err := s.backend()
	if err != nil {
		return nil, err
	}
	b := in.GetValue()
	expected, err := digest.CIDOf(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := cas.Put(b)
	if err != nil {
		return nil, mapErr(err)
	}
	if id != expected {
		return nil, mapErr(storage.ErrCIDMismatch)
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	cas, err := s.backend()
	if err != nil {
		return nil, err
	}
	id, err := decodeCID(in.GetValue())
	if err != nil {
		return nil, err
	}
	b, err := cas.Get(id)
	if err != nil {
		return nil, mapErr(err)
	}
	if got, err := digest.CIDOf(b); err != nil || got != id {
		return nil, mapErr(storage.ErrCIDMismatch)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	cas, err := s.backend()
	if err != nil {
		return nil, err
	}
	id, err := decodeCID(in.GetValue())
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(cas.Has(id)), nil
}

// VerifyChain loads the chain block named by in, rebuilds the chain hash on
// the server and checks every payload it lists. The reply carries the
// verified hash and, per item, whether its payload is stored.
func (s *Server) VerifyChain(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	cas, err := s.backend()
	if err != nil {
		return nil, err
	}
	id, err := decodeCID(in.GetValue())
	if err != nil {
		return nil, err
	}
	rep, err := certstore.New(cas).VerifyChain(id)
	if err != nil {
		return nil, mapErr(err)
	}
	missing := make(map[string]bool, len(rep.Missing))
	for _, it := range rep.Missing {
		missing[it.Name+"\x00"+it.HashHex] = true
	}
	items := make([]any, 0, len(rep.Chain.Items))
	for _, it := range rep.Chain.Items {
		items = append(items, map[string]any{
			"name":    it.Name,
			"hash":    it.HashHex,
			"present": !missing[it.Name+"\x00"+it.HashHex],
		})
	}
	out, err := structpb.NewStruct(map[string]any{
		"chain_hash": rep.Chain.HashHex(),
		"items":      items,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func decodeCID(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil || !id.Defined() {
		return cid.Undef, mapErr(storage.ErrInvalidCID)
	}
	return id, nil
}
