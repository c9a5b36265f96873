package cache

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/objcache/cachemgr/cache/memcache"
	"github.com/objcache/cachemgr/protocol"
	"github.com/objcache/cachemgr/protocol/codec"
	"github.com/objcache/cachemgr/transport"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	backend := memcache.NewMemory()
	t.Cleanup(backend.Close)

	cfg := Config{
		Name:            "cachemgrd-test",
		ProtocolVersion: 1,
		MaxObjectSize:   testMaxObjectSize,
		Capabilities:    protocol.AllCapabilities,
		Locator:         "tcp=127.0.0.1:0",
		Log:             NewLogger("test", LevelError, io.Discard),
	}
	srv, err := NewServer(cfg, backend)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	addr := srv.listener.Addr().String()
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Terminate()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("server did not stop after Terminate")
		}
	})

	return srv, addr
}

// testClient is a minimal synchronous client speaking the wire protocol
// directly, used to drive end-to-end scenarios against a real Server.
type testClient struct {
	conn  net.Conn
	codec codec.Codec
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	c, _ := codec.ByName("binary")
	return &testClient{conn: conn, codec: c}
}

func (c *testClient) roundTrip(t *testing.T, kind protocol.Kind, msg any, attachment []byte) (protocol.Kind, any, []byte) {
	t.Helper()
	encoded, err := c.codec.Encode(kind, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := transport.Send(c.conn, transport.Frame{Kind: kind, Message: encoded, Attachment: attachment}, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := transport.Recv(c.conn, testMaxObjectSize, nil)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	reply, err := c.codec.Decode(frame.Kind, frame.Message)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return frame.Kind, reply, frame.Attachment
}

func TestEndToEndHandshakeThenInfo(t *testing.T) {
	_, addr := startTestServer(t)
	client := dialTestClient(t, addr)

	_, hsAny, _ := client.roundTrip(t, protocol.KindHandshakeReq, &protocol.HandshakeReq{}, nil)
	hs := hsAny.(*protocol.HandshakeReply)
	if hs.Status != protocol.StatusOK {
		t.Fatalf("handshake status = %v", hs.Status)
	}
	if hs.SessionID != 1 {
		t.Fatalf("session id = %d, want 1 for the first connection", hs.SessionID)
	}

	_, infoAny, _ := client.roundTrip(t, protocol.KindInfoReq, &protocol.InfoReq{ReqID: 7}, nil)
	info := infoAny.(*protocol.InfoReply)
	if info.Status != protocol.StatusOK {
		t.Fatalf("info status = %v", info.Status)
	}
	if info.ReqID != 7 {
		t.Fatalf("info req id = %d, want 7", info.ReqID)
	}
}

func TestEndToEndStoreThenRead(t *testing.T) {
	_, addr := startTestServer(t)
	client := dialTestClient(t, addr)

	id := testObjectID(42)
	payload := []byte("round trip payload")

	_, storeAny, _ := client.roundTrip(t, protocol.KindStoreReq, &protocol.StoreReq{
		ReqID: 1, ObjectID: id, PartNr: 1, LastPart: true, Attachment: payload,
	}, payload)
	store := storeAny.(*protocol.StoreReply)
	if store.Status != protocol.StatusOK {
		t.Fatalf("store status = %v", store.Status)
	}

	_, readAny, attachment := client.roundTrip(t, protocol.KindReadReq, &protocol.ReadReq{
		ReqID: 2, ObjectID: id, Offset: 0, Size: uint32(len(payload)),
	}, nil)
	read := readAny.(*protocol.ReadReply)
	if read.Status != protocol.StatusOK {
		t.Fatalf("read status = %v", read.Status)
	}
	if string(attachment) != string(payload) {
		t.Fatalf("read attachment = %q, want %q", attachment, payload)
	}
}

func TestEndToEndQuitClosesConnection(t *testing.T) {
	_, addr := startTestServer(t)
	client := dialTestClient(t, addr)

	encoded, _ := client.codec.Encode(protocol.KindQuit, &protocol.Quit{})
	if err := transport.Send(client.conn, transport.Frame{Kind: protocol.KindQuit, Message: encoded}, 0); err != nil {
		t.Fatalf("send quit: %v", err)
	}

	client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if n, err := client.conn.Read(buf); err != io.EOF && n != 0 {
		t.Fatalf("expected connection close after Quit, got n=%d err=%v", n, err)
	}
}
