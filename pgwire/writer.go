package pgwire

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Writer encodes backend messages into a buffered stream. Nothing reaches
// the connection until Flush.
type Writer struct {
	w   *bufio.Writer
	buf []byte // reused between messages
}

// NewWriter returns a Writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   bufio.NewWriter(w),
		buf: make([]byte, 0, 1024),
	}
}

// Flush sends everything buffered so far.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// message is a backend message under construction: type byte, a length
// placeholder, then the body. send fills in the length.
type message []byte

func (m message) int16(v int16) message {
	return binary.BigEndian.AppendUint16(m, uint16(v))
}

func (m message) int32(v int32) message {
	return binary.BigEndian.AppendUint32(m, uint32(v))
}

// cstring appends s followed by a NUL.
func (m message) cstring(s string) message {
	return append(append(m, s...), 0)
}

// value appends a length-prefixed column value; nil encodes SQL NULL.
func (m message) value(v []byte) message {
	if v == nil {
		return m.int32(-1)
	}
	return append(m.int32(int32(len(v))), v...)
}

// fields appends the tagged field list of ErrorResponse and
// NoticeResponse. Empty fields are left out.
func (m message) fields(severity, code, text, detail string) message {
	for _, f := range [...]struct {
		tag byte
		val string
	}{
		{'S', severity},
		{'V', severity}, // non-localized
		{'C', code},
		{'M', text},
		{'D', detail},
	} {
		if f.val != "" {
			m = append(m, f.tag).cstring(f.val)
		}
	}
	return append(m, 0)
}

func (w *Writer) begin(msgType byte) message {
	return append(message(w.buf[:0]), msgType, 0, 0, 0, 0)
}

// send patches the length (which counts itself but not the type byte) and
// buffers the message.
func (w *Writer) send(m message) error {
	binary.BigEndian.PutUint32(m[1:5], uint32(len(m)-1))
	w.buf = m
	_, err := w.w.Write(m)
	return err
}

// WriteSSLRefuse answers an SSLRequest with the single byte 'N'. It is not a
// framed message.
func (w *Writer) WriteSSLRefuse() error {
	return w.w.WriteByte('N')
}

// WriteAuthCleartextPassword asks the client for its password in clear text.
func (w *Writer) WriteAuthCleartextPassword() error {
	return w.send(w.begin(MsgAuthentication).int32(AuthCleartextPassword))
}

func (w *Writer) WriteAuthOk() error {
	return w.send(w.begin(MsgAuthentication).int32(AuthOk))
}

// WriteParameterStatus reports one run-time parameter (server_version,
// client_encoding, ...).
func (w *Writer) WriteParameterStatus(name, value string) error {
	return w.send(w.begin(MsgParameterStatus).cstring(name).cstring(value))
}

// WriteBackendKeyData sends the cancellation key. Cancel requests are not
// served, but clients expect the message during startup.
func (w *Writer) WriteBackendKeyData(pid, secret int32) error {
	return w.send(w.begin(MsgBackendKeyData).int32(pid).int32(secret))
}

func (w *Writer) WriteReadyForQuery(status byte) error {
	return w.send(append(w.begin(MsgReadyForQuery), status))
}

// WriteRowDescription announces the result columns. Every column is
// reported in text format with no source table.
func (w *Writer) WriteRowDescription(columns []ColumnInfo) error {
	m := w.begin(MsgRowDescription).int16(int16(len(columns)))
	for _, col := range columns {
		m = m.cstring(col.Name).
			int32(col.TableOID).
			int16(col.ColumnAttr).
			int32(col.DataTypeOID).
			int16(col.DataTypeSize).
			int32(col.TypeModifier).
			int16(col.FormatCode)
	}
	return w.send(m)
}

// WriteDataRow sends one row of text-encoded values.
func (w *Writer) WriteDataRow(values [][]byte) error {
	m := w.begin(MsgDataRow).int16(int16(len(values)))
	for _, v := range values {
		m = m.value(v)
	}
	return w.send(m)
}

func (w *Writer) WriteCommandComplete(tag string) error {
	return w.send(w.begin(MsgCommandComplete).cstring(tag))
}

func (w *Writer) WriteEmptyQueryResponse() error {
	return w.send(w.begin(MsgEmptyQueryResponse))
}

// WriteErrorResponse reports a failed command or a fatal connection error.
// An empty detail is not sent.
func (w *Writer) WriteErrorResponse(severity, code, text, detail string) error {
	return w.send(w.begin(MsgErrorResponse).fields(severity, code, text, detail))
}

// WriteNoticeResponse sends an informational message. It does not change
// the outcome of the command it accompanies.
func (w *Writer) WriteNoticeResponse(text string) error {
	return w.send(w.begin(MsgNoticeResponse).fields(SeverityNotice, "00000", text, ""))
}
