package conn

import (
	"bytes"
	"encoding/binary"
	"testing"

	"netplay/pkg/protocol"
	"netplay/pkg/transport"
)

// fakeSocket hands out queued chunks on Recv and records everything sent.
type fakeSocket struct {
	chunks [][]byte
	sent   bytes.Buffer
	buf    []byte
	closed bool
	recvs  int
}

func (s *fakeSocket) Recv(p []byte) int {
	s.recvs++
	if len(s.chunks) == 0 {
		return 0
	}
	n := copy(p, s.chunks[0])
	if n < len(s.chunks[0]) {
		s.chunks[0] = s.chunks[0][n:]
	} else {
		s.chunks = s.chunks[1:]
	}
	return n
}

func (s *fakeSocket) Send(p []byte) int     { s.sent.Write(p); return len(p) }
func (s *fakeSocket) BufferedSend(p []byte) { s.buf = append(s.buf, p...) }
func (s *fakeSocket) Flush()                { s.sent.Write(s.buf); s.buf = s.buf[:0] }
func (s *fakeSocket) Close()                { s.closed = true }
func (s *fakeSocket) ConnectionError() bool { return s.closed }

func frame(t *testing.T, m protocol.Message) []byte {
	t.Helper()
	b, err := protocol.Encode(m)
	if err != nil {
		t.Fatalf("encode %s: %v", m.Type(), err)
	}
	return b
}

type recorder struct{ got []protocol.Message }

func (r *recorder) HandleMessage(m protocol.Message) { r.got = append(r.got, m) }

func TestProcessMessagesDrainsEveryFrame(t *testing.T) {
	var stream []byte
	stream = append(stream, frame(t, &protocol.Ping{ID: 1})...)
	stream = append(stream, frame(t, &protocol.ServerInformation{Salt: "abc"})...)
	stream = append(stream, frame(t, &protocol.Ping{ID: 2})...)

	sock := &fakeSocket{chunks: [][]byte{stream}}
	rec := &recorder{}
	c := New(sock, rec, nil)

	if n := c.ProcessMessages(); n != 3 {
		t.Fatalf("dispatched = %d, want 3", n)
	}
	if p, ok := rec.got[0].(*protocol.Ping); !ok || p.ID != 1 {
		t.Fatalf("first = %#v", rec.got[0])
	}
	if si, ok := rec.got[1].(*protocol.ServerInformation); !ok || si.Salt != "abc" {
		t.Fatalf("second = %#v", rec.got[1])
	}
	if p, ok := rec.got[2].(*protocol.Ping); !ok || p.ID != 2 {
		t.Fatalf("third = %#v", rec.got[2])
	}
}

func TestProcessMessagesByteAtATime(t *testing.T) {
	b := frame(t, &protocol.GameInformation{Port: 2, RomFilename: "game.nes", CRC32: 0xDEADBEEF})
	sock := &fakeSocket{}
	for i := range b {
		sock.chunks = append(sock.chunks, b[i:i+1])
	}
	rec := &recorder{}
	c := New(sock, rec, nil)

	total := 0
	for i := 0; i < len(b) && total == 0; i++ {
		total += c.ProcessMessages()
	}
	if total != 1 || len(rec.got) != 1 {
		t.Fatalf("dispatched = %d, want exactly 1", total)
	}
	gi := rec.got[0].(*protocol.GameInformation)
	if gi.Port != 2 || gi.RomFilename != "game.nes" || gi.CRC32 != 0xDEADBEEF {
		t.Fatalf("decoded = %+v", gi)
	}
}

func TestOversizedFrameDisconnectsWithoutDispatch(t *testing.T) {
	var hdr [5]byte
	binary.LittleEndian.PutUint32(hdr[:4], protocol.MaxFrameLength+1)
	hdr[4] = byte(protocol.TypePing)
	sock := &fakeSocket{chunks: [][]byte{hdr[:]}}
	rec := &recorder{}
	c := New(sock, rec, nil)

	if n := c.ProcessMessages(); n != 0 {
		t.Fatalf("dispatched = %d, want 0", n)
	}
	if !sock.closed || !c.ConnectionError() {
		t.Fatalf("connection should be closed after oversized frame")
	}
	if len(rec.got) != 0 {
		t.Fatalf("handler called for oversized frame")
	}
	if c.fb.Len() != 0 {
		t.Fatalf("receive buffer holds %d bytes after disconnect", c.fb.Len())
	}
}

func TestDisconnectDropsPartialFrame(t *testing.T) {
	b := frame(t, &protocol.ServerInformation{Salt: "salt"})
	sock := &fakeSocket{chunks: [][]byte{b[:len(b)-2]}}
	rec := &recorder{}
	c := New(sock, rec, nil)

	if n := c.ProcessMessages(); n != 0 {
		t.Fatalf("dispatched = %d for a partial frame", n)
	}
	if c.fb.Len() != len(b)-2 {
		t.Fatalf("buffered = %d, want %d", c.fb.Len(), len(b)-2)
	}
	c.Disconnect()
	c.Disconnect()
	if !sock.closed || c.fb.Len() != 0 {
		t.Fatalf("closed=%v buffered=%d after disconnect", sock.closed, c.fb.Len())
	}
}

func TestUnknownTagIsSkipped(t *testing.T) {
	unknown := []byte{3, 0, 0, 0, 42, 0xAA, 0xBB}
	var stream []byte
	stream = append(stream, unknown...)
	stream = append(stream, frame(t, &protocol.Ping{ID: 7})...)

	sock := &fakeSocket{chunks: [][]byte{stream}}
	rec := &recorder{}
	c := New(sock, rec, nil)

	if n := c.ProcessMessages(); n != 1 {
		t.Fatalf("dispatched = %d, want 1", n)
	}
	if p := rec.got[0].(*protocol.Ping); p.ID != 7 {
		t.Fatalf("ping id = %d", p.ID)
	}
	if sock.closed {
		t.Fatalf("unknown tag must not disconnect")
	}
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	// Ping needs 4 payload bytes; give it 2.
	short := []byte{3, 0, 0, 0, byte(protocol.TypePing), 1, 2}
	var stream []byte
	stream = append(stream, short...)
	stream = append(stream, frame(t, &protocol.SelectController{Port: 1})...)

	sock := &fakeSocket{chunks: [][]byte{stream}}
	rec := &recorder{}
	c := New(sock, rec, nil)

	if n := c.ProcessMessages(); n != 1 {
		t.Fatalf("dispatched = %d, want 1", n)
	}
	if sc := rec.got[0].(*protocol.SelectController); sc.Port != 1 {
		t.Fatalf("port = %d", sc.Port)
	}
}

func TestHandlerMaySendDuringDispatch(t *testing.T) {
	sock := &fakeSocket{chunks: [][]byte{frame(t, &protocol.Ping{ID: 5})}}
	var c *Connection
	c = New(sock, HandlerFunc(func(m protocol.Message) {
		if err := c.Send(m); err != nil {
			t.Errorf("send: %v", err)
		}
	}), nil)

	c.ProcessMessages()
	if !bytes.Equal(sock.sent.Bytes(), frame(t, &protocol.Ping{ID: 5})) {
		t.Fatalf("echo = %x", sock.sent.Bytes())
	}
}

func TestLargeFrameBypassesSendBuffer(t *testing.T) {
	sock := &fakeSocket{}
	c := New(sock, nil, nil)
	big := &protocol.SaveState{State: make([]byte, transport.SendBufferSize)}
	if err := c.Send(big); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sock.buf) != 0 {
		t.Fatalf("large frame went through the send buffer")
	}
	if sock.sent.Len() != len(frame(t, big)) {
		t.Fatalf("sent %d bytes", sock.sent.Len())
	}
}

func TestSendRejectsOversizedMessage(t *testing.T) {
	sock := &fakeSocket{}
	c := New(sock, nil, nil)
	err := c.Send(&protocol.SaveState{State: make([]byte, protocol.MaxFrameLength)})
	if err == nil {
		t.Fatalf("expected error")
	}
	if sock.sent.Len() != 0 {
		t.Fatalf("oversized message reached the socket")
	}
}
