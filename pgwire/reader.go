package pgwire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// ErrMessageTooLarge is returned when a frontend message declares a length
// above MaxMessageSize. The payload is not read, so the stream cannot be
// resynchronized and the connection must be closed.
var ErrMessageTooLarge = errors.New("message exceeds maximum size")

// Reader reads PostgreSQL wire protocol messages from a connection.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps an io.Reader for reading PG protocol messages.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadStartup reads the initial untyped message from the client.
// It returns the parsed StartupMessage and whether the message was an SSL
// request (in which case msg is nil and the caller should refuse SSL and
// call ReadStartup again).
func (r *Reader) ReadStartup() (msg *StartupMessage, isSSL bool, err error) {
	var length int32
	if err := binary.Read(r.r, binary.BigEndian, &length); err != nil {
		return nil, false, errors.Wrap(err, "read startup length")
	}
	if length < 8 {
		return nil, false, errors.Newf("startup message too short: %d bytes", length)
	}
	if length-4 > MaxMessageSize {
		return nil, false, errors.Wrapf(ErrMessageTooLarge, "startup message of %d bytes", length)
	}

	payload := make([]byte, length-4)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, false, errors.Wrap(err, "read startup payload")
	}

	version := int32(binary.BigEndian.Uint32(payload[:4]))

	if version == SSLRequestCode {
		return nil, true, nil
	}
	if version != ProtocolVersion {
		return nil, false, errors.Newf("unsupported protocol version: %d.%d",
			version>>16, version&0xFFFF)
	}

	startup := &StartupMessage{
		ProtocolVersion: version,
		Parameters:      make(map[string]string),
	}
	params := payload[4:]
	for len(params) > 1 {
		key, rest := readCString(params)
		if len(rest) == 0 {
			break
		}
		value, rest := readCString(rest)
		startup.Parameters[key] = value
		params = rest
	}

	return startup, false, nil
}

// ReadMessage reads a typed message (1-byte type + int32 length + payload).
func (r *Reader) ReadMessage() (msgType byte, payload []byte, err error) {
	msgType, err = r.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}

	var length int32
	if err := binary.Read(r.r, binary.BigEndian, &length); err != nil {
		return 0, nil, errors.Wrap(err, "read message length")
	}
	if length < 4 {
		return 0, nil, errors.Newf("message length too short: %d", length)
	}
	if length-4 > MaxMessageSize {
		return msgType, nil, errors.Wrapf(ErrMessageTooLarge, "message '%c' of %d bytes", msgType, length)
	}

	payload = make([]byte, length-4)
	if length > 4 {
		if _, err := io.ReadFull(r.r, payload); err != nil {
			return 0, nil, errors.Wrap(err, "read message payload")
		}
	}
	return msgType, payload, nil
}

// readCString reads a null-terminated string from b, returning the string
// and the remaining bytes after the null terminator.
func readCString(b []byte) (string, []byte) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:]
		}
	}
	return string(b), nil
}
