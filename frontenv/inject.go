package frontenv

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// DefaultMaxBuffer bounds how many bytes of a single unresolved token the
// injector holds while looking for <head>.
const DefaultMaxBuffer = 256 << 10

var (
	// ErrStreamRead is returned when the source stream fails.
	ErrStreamRead = errors.New("frontenv: stream read failed")
	// ErrStreamWrite is returned when the destination rejects output.
	ErrStreamWrite = errors.New("frontenv: stream write failed")
)

var headTag = []byte("head")

// Option configures an Injector.
type Option func(*Injector)

// WithMaxBuffer sets the per-token buffering limit. n <= 0 removes the
// limit.
func WithMaxBuffer(n int) Option {
	return func(inj *Injector) {
		inj.maxBuf = n
	}
}

// Injector splices a script block into an HTML stream right after the
// first <head> start tag. An Injector holds no per-stream state and may be
// used for any number of concurrent streams.
type Injector struct {
	script []byte
	maxBuf int
}

// Result describes what a single Transform did.
type Result struct {
	// Injected is true when the script block was written.
	Injected bool
	// Overflow is true when a token before <head> exceeded the buffer
	// limit and the rest of the stream was copied without scanning.
	Overflow bool
	// Written is the number of bytes written to the destination.
	Written int64
}

// NewInjector returns an Injector that inserts script.
func NewInjector(script string, opts ...Option) *Injector {
	inj := &Injector{
		script: []byte(script),
		maxBuf: DefaultMaxBuffer,
	}
	for _, opt := range opts {
		opt(inj)
	}
	return inj
}

// Transform copies src to dst, inserting the script block immediately
// after the closing '>' of the first <head ...> start tag. Output is
// written as soon as each token is complete; only the bytes of the token
// currently being recognized are held back. Once the script is written
// the remainder of src is copied without tokenizing.
//
// Every byte of src reaches dst unchanged. If src contains no head start
// tag, dst receives exactly src. Errors from src are wrapped with
// ErrStreamRead and errors from dst with ErrStreamWrite.
func (inj *Injector) Transform(dst io.Writer, src io.Reader) (res Result, err error) {
	src = &splitErrReader{r: src}
	cw := &countingWriter{w: dst}
	defer func() { res.Written = cw.n }()

	z := html.NewTokenizer(src)
	if inj.maxBuf > 0 {
		z.SetMaxBuf(inj.maxBuf)
	}

	for {
		tt := z.Next()

		// Raw must be written before TagName, which lowercases the
		// tokenizer buffer in place.
		if raw := z.Raw(); len(raw) > 0 {
			if _, err := cw.Write(raw); err != nil {
				return res, fmt.Errorf("%w: %w", ErrStreamWrite, err)
			}
		}

		switch tt {
		case html.ErrorToken:
			zerr := z.Err()
			switch {
			case errors.Is(zerr, io.EOF):
				return res, nil
			case errors.Is(zerr, html.ErrBufferExceeded):
				log.Debug().Int("max_buffer", inj.maxBuf).Msg("[inject] token exceeds buffer limit, passing through")
				res.Overflow = true
				return res, inj.passthrough(cw, z, src)
			default:
				return res, fmt.Errorf("%w: %w", ErrStreamRead, zerr)
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if !bytes.Equal(name, headTag) {
				continue
			}
			if _, err := cw.Write(inj.script); err != nil {
				return res, fmt.Errorf("%w: %w", ErrStreamWrite, err)
			}
			res.Injected = true
			return res, inj.passthrough(cw, z, src)
		}
	}
}

// passthrough flushes the bytes the tokenizer read ahead and copies the
// rest of src untouched.
func (inj *Injector) passthrough(cw *countingWriter, z *html.Tokenizer, src io.Reader) error {
	if buffered := z.Buffered(); len(buffered) > 0 {
		if _, err := cw.Write(buffered); err != nil {
			return fmt.Errorf("%w: %w", ErrStreamWrite, err)
		}
	}
	if _, err := io.Copy(cw, src); err != nil {
		if cw.err != nil {
			return fmt.Errorf("%w: %w", ErrStreamWrite, err)
		}
		return fmt.Errorf("%w: %w", ErrStreamRead, err)
	}
	return nil
}

// NewReader returns a reader yielding the transformed contents of src.
// Transform runs in its own goroutine; closing the returned reader makes
// the next write fail, after which src is no longer read. A Read blocked
// inside src is not interrupted, so callers owning src should close it
// as well.
func (inj *Injector) NewReader(src io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := inj.Transform(pw, src)
		pw.CloseWithError(err)
	}()
	return pr
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	cw.err = err
	return n, err
}

// splitErrReader never returns data and an error from the same Read, so
// the tokenizer cannot lose bytes that arrive together with io.EOF.
type splitErrReader struct {
	r   io.Reader
	err error
}

func (s *splitErrReader) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.r.Read(p)
	if n > 0 && err != nil {
		s.err = err
		return n, nil
	}
	return n, err
}
