// Package buffer captures rendered page output outside the live response
// stream and turns it into a storable byte payload.
package buffer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// Response is a rendered page payload: status, headers and body, captured
// off the live response stream. A Response is immutable once captured; it is
// owned by whoever holds it and consumed at most once.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Bytes returns the HTTP/1.1 representation of the payload.
// This is the form stored in a buffered-response store.
func (r *Response) Bytes() []byte {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", r.StatusCode, http.StatusText(r.StatusCode))
	r.Header.Write(buf)
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.Bytes()
}

// ParseResponse converts a byte slice produced by Bytes back to a Response.
func ParseResponse(b []byte) (*Response, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}, nil
}

// WriteTo replays the payload onto a live http.ResponseWriter.
func (r *Response) WriteTo(w http.ResponseWriter) error {
	copyHeader(w.Header(), r.Header)
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.Body)
	return err
}

// Writer is an http.ResponseWriter that records the response into a buffer
// instead of sending it anywhere. Render a page into a Writer and call
// Response to get the captured payload.
type Writer struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

// NewWriter returns an empty capture writer.
func NewWriter() *Writer {
	return &Writer{header: http.Header{}}
}

// Implementation of http.ResponseWriter
func (w *Writer) Header() http.Header {
	return w.header
}

// Implementation of http.ResponseWriter
func (w *Writer) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = statusCode
}

// Implementation of http.ResponseWriter
func (w *Writer) Write(b []byte) (int, error) {
	// write headers if not already written
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

// StatusCode returns the recorded status code, or zero if nothing was written.
func (w *Writer) StatusCode() int {
	return w.status
}

// Response returns the captured payload.
func (w *Writer) Response() *Response {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{
		StatusCode: status,
		Header:     w.header,
		Body:       w.body.Bytes(),
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
