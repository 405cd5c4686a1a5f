package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Protocol limits.
const (
	// DefaultMaxArgs caps the elements of one command array. TOKEN.*
	// commands take at most three arguments.
	DefaultMaxArgs = 16

	// DefaultMaxBulkBytes caps one bulk argument, i.e. a payload.
	DefaultMaxBulkBytes = 1 << 20

	// DefaultMaxInlineBytes caps an inline command line.
	DefaultMaxInlineBytes = 64 * 1024

	// maxHeaderBytes bounds "*<n>" and "$<n>" header lines.
	maxHeaderBytes = 32
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// Limits bounds what a single command may allocate.
type Limits struct {
	MaxArgs        int
	MaxBulkBytes   int
	MaxInlineBytes int
}

// DefaultLimits returns the default protocol limits.
func DefaultLimits() Limits {
	return Limits{
		MaxArgs:        DefaultMaxArgs,
		MaxBulkBytes:   DefaultMaxBulkBytes,
		MaxInlineBytes: DefaultMaxInlineBytes,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxArgs <= 0 {
		l.MaxArgs = d.MaxArgs
	}
	if l.MaxBulkBytes <= 0 {
		l.MaxBulkBytes = d.MaxBulkBytes
	}
	if l.MaxInlineBytes <= 0 {
		l.MaxInlineBytes = d.MaxInlineBytes
	}
	return l
}

// commandReader decodes client commands: RESP arrays of bulk strings as
// sent by client libraries, or inline lines as typed into telnet.
type commandReader struct {
	br     *bufio.Reader
	limits Limits
}

func newCommandReader(r io.Reader, limits Limits) *commandReader {
	return &commandReader{br: bufio.NewReader(r), limits: limits.withDefaults()}
}

// peek blocks until at least one byte is buffered.
func (r *commandReader) peek() error {
	_, err := r.br.Peek(1)
	return err
}

// next reads one command. A blank inline line or an empty array yields
// zero arguments and no error.
func (r *commandReader) next() ([][]byte, error) {
	b, err := r.br.Peek(1)
	if err != nil {
		return nil, err
	}
	if b[0] == '*' {
		return r.readArray()
	}

	line, err := r.readLine(r.limits.MaxInlineBytes)
	if err != nil {
		return nil, err
	}
	return splitInline(line)
}

func (r *commandReader) readArray() ([][]byte, error) {
	n, err := r.readHeader('*')
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if n > r.limits.MaxArgs {
		return nil, fmt.Errorf("%w: %d arguments exceeds limit %d", ErrLimitExceeded, n, r.limits.MaxArgs)
	}

	args := make([][]byte, n)
	for i := range args {
		if args[i], err = r.readBulk(); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (r *commandReader) readBulk() ([]byte, error) {
	n, err := r.readHeader('$')
	if err != nil {
		return nil, err
	}
	switch {
	case n == -1:
		return nil, nil
	case n < 0:
		return nil, fmt.Errorf("%w: negative bulk length", ErrProtocol)
	case n > r.limits.MaxBulkBytes:
		return nil, fmt.Errorf("%w: bulk of %d bytes exceeds limit %d", ErrLimitExceeded, n, r.limits.MaxBulkBytes)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, fmt.Errorf("%w: bulk not terminated by CRLF", ErrProtocol)
	}
	return buf[:n], nil
}

// readHeader reads "<prefix><int>\r\n".
func (r *commandReader) readHeader(prefix byte) (int, error) {
	line, err := r.readLine(maxHeaderBytes)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected '%c' header", ErrProtocol, prefix)
	}
	n, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line[1:])
	}
	return n, nil
}

// readLine returns one CRLF-terminated line without the terminator.
func (r *commandReader) readLine(limit int) ([]byte, error) {
	var line []byte
	for {
		frag, err := r.br.ReadSlice('\n')
		line = append(line, frag...)
		if len(line) > limit+2 {
			return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrLimitExceeded, limit)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}

	if !bytes.HasSuffix(line, []byte("\r\n")) {
		return nil, fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return line[:len(line)-2], nil
}

// splitInline splits an inline command on spaces. Double-quoted
// arguments may contain spaces and the escapes \" \\ \n \r \t.
func splitInline(line []byte) ([][]byte, error) {
	var (
		args   [][]byte
		cur    []byte
		inArg  bool
		quoted bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quoted && c == '\\' && i+1 < len(line):
			i++
			switch line[i] {
			case 'n':
				cur = append(cur, '\n')
			case 'r':
				cur = append(cur, '\r')
			case 't':
				cur = append(cur, '\t')
			default:
				cur = append(cur, line[i])
			}
		case quoted && c == '"':
			quoted = false
			if i+1 < len(line) && line[i+1] != ' ' && line[i+1] != '\t' {
				return nil, fmt.Errorf("%w: closing quote must be followed by a space", ErrProtocol)
			}
		case quoted:
			cur = append(cur, c)
		case c == '"' && !inArg:
			quoted = true
			inArg = true
			cur = []byte{}
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, cur)
				cur = nil
				inArg = false
			}
		default:
			cur = append(cur, c)
			inArg = true
		}
	}

	if quoted {
		return nil, fmt.Errorf("%w: unbalanced quotes", ErrProtocol)
	}
	if inArg {
		args = append(args, cur)
	}
	return args, nil
}

// replyWriter encodes replies into a buffered writer. Errors are sticky:
// once a write fails, later writes are no-ops and flush reports it.
type replyWriter struct {
	bw  *bufio.Writer
	err error
}

func newReplyWriter(w io.Writer) *replyWriter {
	return &replyWriter{bw: bufio.NewWriter(w)}
}

func (w *replyWriter) line(prefix byte, s string) {
	if w.err != nil {
		return
	}
	if err := w.bw.WriteByte(prefix); err != nil {
		w.err = err
		return
	}
	if _, err := w.bw.WriteString(s); err != nil {
		w.err = err
		return
	}
	_, w.err = w.bw.WriteString("\r\n")
}

// status writes a simple string reply.
func (w *replyWriter) status(s string) { w.line('+', s) }

// fail writes an error reply. CR and LF are replaced so the message
// cannot break framing.
func (w *replyWriter) fail(msg string) {
	w.line('-', string(bytes.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, []byte(msg))))
}

// integer writes an integer reply.
func (w *replyWriter) integer(n int64) { w.line(':', strconv.FormatInt(n, 10)) }

// null writes the null bulk reply.
func (w *replyWriter) null() { w.line('$', "-1") }

// bulk writes a bulk reply. A nil slice is written as null.
func (w *replyWriter) bulk(b []byte) {
	if b == nil {
		w.null()
		return
	}
	w.line('$', strconv.Itoa(len(b)))
	if w.err != nil {
		return
	}
	if _, err := w.bw.Write(b); err != nil {
		w.err = err
		return
	}
	_, w.err = w.bw.WriteString("\r\n")
}

// flush sends buffered replies and returns the first error seen.
func (w *replyWriter) flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.bw.Flush()
	return w.err
}

// commandName upper-cases ASCII letters of a command name.
func commandName(b []byte) string {
	return string(bytes.ToUpper(b))
}
