// Package sse decodes event-stream framed log records out of raw chunks.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"

	"pkt.systems/hostconsole/schema"
)

const (
	dataField     = "data"
	commentMarker = ":"
)

var recordDelimiter = []byte("\n\n")

// Decoder turns an append-only byte stream into ordered frames.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	text    *utf8Stream
	buf     []byte
	scan    int
	carryCR bool
	closed  bool
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{text: newUTF8Stream()}
}

// Feed appends chunk to the decoder and returns every frame completed by it,
// in stream order. Undelimited trailing text stays buffered.
func (d *Decoder) Feed(chunk []byte) []schema.Frame {
	if d.closed || len(chunk) == 0 {
		return nil
	}
	d.appendText(d.text.decode(chunk, false))

	var frames []schema.Frame
	for {
		idx := bytes.Index(d.buf[d.scan:], recordDelimiter)
		if idx < 0 {
			// The delimiter may straddle the next chunk.
			d.scan = len(d.buf) - 1
			if d.scan < 0 {
				d.scan = 0
			}
			break
		}
		end := d.scan + idx
		record := string(d.buf[:end])
		d.buf = d.buf[end+len(recordDelimiter):]
		d.scan = 0
		frames = append(frames, DecodeRecord(record)...)
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Buffered returns the number of undelimited bytes held.
func (d *Decoder) Buffered() int {
	n := len(d.buf)
	if d.carryCR {
		n++
	}
	return n
}

// Close ends the stream. Any undelimited leftover is discarded, never
// surfaced as a frame. Close returns the number of discarded bytes.
func (d *Decoder) Close() int {
	if d.closed {
		return 0
	}
	d.closed = true
	discarded := d.Buffered() + d.text.reset()
	d.buf = nil
	d.scan = 0
	d.carryCR = false
	return discarded
}

// appendText normalises CRLF and lone CR to LF. A trailing CR is held back
// until the next chunk shows whether it starts a CRLF pair.
func (d *Decoder) appendText(text []byte) {
	if len(text) == 0 {
		return
	}
	if d.carryCR {
		text = append([]byte{'\r'}, text...)
		d.carryCR = false
	}
	if text[len(text)-1] == '\r' {
		d.carryCR = true
		text = text[:len(text)-1]
	}
	if bytes.IndexByte(text, '\r') >= 0 {
		text = bytes.ReplaceAll(text, []byte("\r\n"), []byte("\n"))
		text = bytes.ReplaceAll(text, []byte("\r"), []byte("\n"))
	}
	d.buf = append(d.buf, text...)
}

// DecodeRecord decodes one delimited record. Every data line yields a data
// frame and every comment line yields a comment frame, in line order. Other
// fields (event, id, retry) are ignored, so a record without data or
// comment lines yields nothing.
func DecodeRecord(record string) []schema.Frame {
	var frames []schema.Frame
	for _, line := range strings.Split(record, "\n") {
		switch {
		case strings.HasPrefix(line, commentMarker):
			frames = append(frames, schema.Frame{
				Origin: schema.FrameComment,
				Raw:    strings.TrimSpace(strings.TrimPrefix(line, commentMarker)),
			})
		case line == dataField || strings.HasPrefix(line, dataField+":"):
			frames = append(frames, decodeData(fieldValue(line)))
		}
	}
	return frames
}

func fieldValue(line string) string {
	value := strings.TrimPrefix(line, dataField)
	value = strings.TrimPrefix(value, ":")
	return strings.TrimPrefix(value, " ")
}

func decodeData(payload string) schema.Frame {
	frame := schema.Frame{Origin: schema.FrameData, Raw: payload}
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return frame
	}
	if strings.TrimSpace(payload[dec.InputOffset():]) != "" {
		return frame
	}
	frame.Payload = value
	frame.Structured = true
	return frame
}
