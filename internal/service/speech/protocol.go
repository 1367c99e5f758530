package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// 帧格式：4 字节头 | 可选 sequence | 可选事件元数据 | payload 长度 | payload。

const protocolVersion = 0b0001

type messageType uint8

const (
	fullClientRequest       messageType = 0b0001
	fullServerResponse      messageType = 0b1001
	audioOnlyServerResponse messageType = 0b1011
	errorMessage            messageType = 0b1111
)

type messageFlags uint8

const (
	noSequence       messageFlags = 0b0000
	positiveSequence messageFlags = 0b0001
	lastNoSequence   messageFlags = 0b0010
	negativeSequence messageFlags = 0b0011
	withEvent        messageFlags = 0b0100
)

type eventType int32

const (
	eventStartConnection    eventType = 1
	eventFinishConnection   eventType = 2
	eventConnectionStarted  eventType = 50
	eventConnectionFailed   eventType = 51
	eventConnectionFinished eventType = 52
	eventSessionStarted     eventType = 150
	eventSessionFinished    eventType = 152
	eventSessionFailed      eventType = 153
)

type serialization uint8

const (
	rawSerialization  serialization = 0b0000
	jsonSerialization serialization = 0b0001
)

type compression uint8

const (
	noCompression   compression = 0b0000
	gzipCompression compression = 0b0001
)

type header struct {
	version       uint8
	size          uint8 // 以 4 字节为单位
	msgType       messageType
	flags         messageFlags
	serialization serialization
	compression   compression
}

type frame struct {
	header    header
	sequence  int32
	event     eventType
	sessionID string
	connectID string
	errorCode uint32
	payload   []byte
}

func (h header) encode() []byte {
	return []byte{
		h.version<<4 | h.size,
		uint8(h.msgType)<<4 | uint8(h.flags),
		uint8(h.serialization)<<4 | uint8(h.compression),
		0,
	}
}

func decodeHeader(b []byte) (header, error) {
	if len(b) < 4 {
		return header{}, fmt.Errorf("header too short: got %d bytes", len(b))
	}
	h := header{
		version:       b[0] >> 4,
		size:          b[0] & 0x0F,
		msgType:       messageType(b[1] >> 4),
		flags:         messageFlags(b[1] & 0x0F),
		serialization: serialization(b[2] >> 4),
		compression:   compression(b[2] & 0x0F),
	}
	if h.version != protocolVersion {
		return header{}, fmt.Errorf("unsupported protocol version %d", h.version)
	}
	if h.size == 0 {
		return header{}, fmt.Errorf("invalid header size 0")
	}
	return h, nil
}

func (f *frame) hasSequence() bool {
	switch f.header.flags & 0b0011 {
	case positiveSequence, negativeSequence:
		return true
	}
	return false
}

func (f *frame) hasEvent() bool {
	return f.header.flags&withEvent == withEvent
}

// isLast 判断是否为服务端的最后一包。
func (f *frame) isLast() bool {
	switch f.header.flags & 0b0011 {
	case lastNoSequence, negativeSequence:
		return true
	}
	return false
}

// 连接级事件不带 session id。
func eventSkipsSessionID(e eventType) bool {
	switch e {
	case eventStartConnection, eventFinishConnection,
		eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

func eventHasConnectID(e eventType) bool {
	switch e {
	case eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putString(buf *bytes.Buffer, s string) {
	putUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func (f *frame) marshal() []byte {
	var buf bytes.Buffer
	buf.Write(f.header.encode())
	if f.hasSequence() {
		putUint32(&buf, uint32(f.sequence))
	}
	if f.hasEvent() {
		putUint32(&buf, uint32(f.event))
		if !eventSkipsSessionID(f.event) {
			putString(&buf, f.sessionID)
		}
		if eventHasConnectID(f.event) {
			putString(&buf, f.connectID)
		}
	}
	if f.header.msgType == errorMessage {
		putUint32(&buf, f.errorCode)
	}
	putUint32(&buf, uint32(len(f.payload)))
	buf.Write(f.payload)
	return buf.Bytes()
}

func readUint32(r io.Reader, what string) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read %s: %w", what, err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readString(r io.Reader, what string) (string, error) {
	n, err := readUint32(r, what+" size")
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read %s: %w", what, err)
	}
	return string(b), nil
}

func unmarshalFrame(data []byte) (*frame, error) {
	r := bytes.NewReader(data)
	var raw [4]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h, err := decodeHeader(raw[:])
	if err != nil {
		return nil, err
	}
	f := &frame{header: h}

	if extra := int(h.size)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("read extended header: %w", err)
		}
	}
	if f.hasSequence() {
		seq, err := readUint32(r, "sequence")
		if err != nil {
			return nil, err
		}
		f.sequence = int32(seq)
	}
	if f.hasEvent() {
		ev, err := readUint32(r, "event")
		if err != nil {
			return nil, err
		}
		f.event = eventType(int32(ev))
		if !eventSkipsSessionID(f.event) {
			if f.sessionID, err = readString(r, "session id"); err != nil {
				return nil, err
			}
		}
		if eventHasConnectID(f.event) {
			if f.connectID, err = readString(r, "connect id"); err != nil {
				return nil, err
			}
		}
	}
	if h.msgType == errorMessage {
		if f.errorCode, err = readUint32(r, "error code"); err != nil {
			return nil, err
		}
	}

	size, err := readUint32(r, "payload size")
	if err != nil {
		return nil, err
	}
	if size > 0 {
		f.payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.payload); err != nil {
			return nil, fmt.Errorf("read payload (expected %d bytes): %w", size, err)
		}
	}
	return f, nil
}

// body 返回解压后的 payload。
func (f *frame) body() ([]byte, error) {
	switch f.header.compression {
	case noCompression:
		return f.payload, nil
	case gzipCompression:
		zr, err := gzip.NewReader(bytes.NewReader(f.payload))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("unsupported compression method %d", f.header.compression)
	}
}

func newClientRequest(payload []byte) *frame {
	return &frame{
		header: header{
			version:       protocolVersion,
			size:          1,
			msgType:       fullClientRequest,
			flags:         noSequence,
			serialization: jsonSerialization,
			compression:   noCompression,
		},
		payload: payload,
	}
}
