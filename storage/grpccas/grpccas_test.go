package grpccas

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/cert"
	"xdao.co/collapse/digest"
	"xdao.co/collapse/spine"
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/certstore"
	"xdao.co/collapse/storage/localfs"
	"xdao.co/collapse/storage/memory"
	"xdao.co/collapse/storage/testkit"
)

func serve(t *testing.T, cas storage.CAS) *Client {
	t.Helper()
	return serveWith(t, &Server{CAS: cas})
}

func serveWith(t *testing.T, impl CASServer, opts ...grpc.ServerOption) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(opts...)
	RegisterCASServer(srv, impl)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	client, err := Dial("bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCCAS_LocalFS_RoundTrip(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, cas)

	payload := []byte(`{"graph_hash_hex":"00","profile_name":"code_safe"}`)
	id, err := client.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want, _ := digest.CIDOf(payload)
	if id != want {
		t.Fatalf("CID = %s want %s", id, want)
	}
	if !client.Has(id) {
		t.Fatalf("Has: expected true")
	}
	got, err := client.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}

	missing, _ := digest.CIDOf([]byte("missing"))
	if _, err := client.Get(missing); !storage.IsNotFound(err) {
		t.Fatalf("Get missing: want ErrNotFound, got %v", err)
	}
}

func TestGRPCCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatalf("localfs.New: %v", err)
		}
		return serve(t, cas)
	})
}

func TestMapErrRoundTrip(t *testing.T) {
	for _, sentinel := range []error{storage.ErrNotFound, storage.ErrInvalidCID, storage.ErrCIDMismatch, storage.ErrImmutable, certstore.ErrNotCanonical} {
		if got := mapRPC(mapErr(sentinel)); got != sentinel {
			t.Fatalf("%v did not survive the wire: %v", sentinel, got)
		}
	}
}

func storedRun(t *testing.T, cas storage.CAS) (*spine.Result, *certstore.Manifest) {
	t.Helper()
	r, err := spine.Compute(spine.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	m, err := certstore.New(cas).PutRun(r.Certificates(), r.Chain)
	if err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	return r, m
}

func TestVerifyChain_StoredRun(t *testing.T) {
	cas := memory.New()
	r, m := storedRun(t, cas)
	client := serve(t, cas)

	rep, err := client.VerifyChain(context.Background(), m.Chain)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if rep.Chain.Hash != r.Chain.Hash || !rep.Complete() {
		t.Fatalf("report = %s missing %v, want %s", rep.Chain.HashHex(), rep.Missing, r.Chain.HashHex())
	}
	if len(rep.Chain.Items) != len(r.Chain.Items) {
		t.Fatalf("items = %d want %d", len(rep.Chain.Items), len(r.Chain.Items))
	}
}

func TestVerifyChain_MissingPayloadAndErrors(t *testing.T) {
	cas := memory.New()
	a := cert.New("a", "1", canon.String("a"))
	b := cert.New("b", "1", canon.String("b"))
	s := certstore.New(cas)
	if _, err := s.Put(a); err != nil {
		t.Fatal(err)
	}
	id, err := s.PutChain(cert.BuildChain([]cert.Item{cert.ItemOf(a), cert.ItemOf(b)}))
	if err != nil {
		t.Fatal(err)
	}
	client := serve(t, cas)
	ctx := context.Background()

	rep, err := client.VerifyChain(ctx, id)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if len(rep.Missing) != 1 || rep.Missing[0].Name != "b" {
		t.Fatalf("missing = %v", rep.Missing)
	}

	bogus, err := cas.Put([]byte(`[{"name":"k","hash":"00"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.VerifyChain(ctx, bogus); !errors.Is(err, certstore.ErrNotCanonical) {
		t.Fatalf("expected ErrNotCanonical, got %v", err)
	}
	absent, _ := digest.CIDOf([]byte("[]"))
	if _, err := client.VerifyChain(ctx, absent); !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := client.VerifyChain(ctx, cid.Undef); !errors.Is(err, storage.ErrInvalidCID) {
		t.Fatalf("expected ErrInvalidCID, got %v", err)
	}
}

// droppingServer answers VerifyChain with its last item removed.
type droppingServer struct{ *Server }

func (d droppingServer) VerifyChain(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	out, err := d.Server.VerifyChain(ctx, in)
	if err != nil {
		return nil, err
	}
	list := out.Fields["items"].GetListValue()
	list.Values = list.Values[:len(list.Values)-1]
	return out, nil
}

func TestVerifyChain_RejectsAlteredReply(t *testing.T) {
	cas := memory.New()
	_, m := storedRun(t, cas)
	client := serveWith(t, droppingServer{&Server{CAS: cas}})
	if _, err := client.VerifyChain(context.Background(), m.Chain); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestService_InterceptorSeesFullMethod(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	icpt := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		mu.Lock()
		seen = append(seen, info.FullMethod)
		mu.Unlock()
		if _, ok := info.Server.(*Server); !ok {
			t.Errorf("info.Server = %T", info.Server)
		}
		return h(ctx, req)
	}
	cas := memory.New()
	_, m := storedRun(t, cas)
	client := serveWith(t, &Server{CAS: cas}, grpc.UnaryInterceptor(icpt))

	if !client.Has(m.Chain) {
		t.Fatalf("Has: expected true")
	}
	if _, err := client.VerifyChain(context.Background(), m.Chain); err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"/" + ServiceName + "/Has", "/" + ServiceName + "/VerifyChain"}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Fatalf("methods = %v want %v", seen, want)
	}
}

func TestServer_WithoutCAS(t *testing.T) {
	client := serveWith(t, &Server{})
	if _, err := client.Put([]byte("x")); err == nil {
		t.Fatalf("expected an error from a server with no CAS")
	}
	var nilClient *Client
	if _, err := nilClient.Put([]byte("x")); !errors.Is(err, storage.ErrNoBackends) {
		t.Fatalf("nil client: %v", err)
	}
}
