package httpapi

import (
	"bufio"
	"fmt"
	"time"
)

const boundary = "frame"

// writeStream writes a multipart part whenever next yields a new frame and
// idles otherwise. After heartbeat without a new frame it repeats the last
// part, or a blank preamble line before the first one, so a departed client
// surfaces as a write error. It returns nil when done closes and the write
// error when the client goes away.
func writeStream(w *bufio.Writer, next func() ([]byte, bool), contentType string, idle, heartbeat time.Duration, done <-chan struct{}) error {
	var last []byte
	lastWrite := time.Now()
	for {
		select {
		case <-done:
			return nil
		default:
		}

		data, ok := next()
		if !ok {
			if time.Since(lastWrite) >= heartbeat {
				if err := writeHeartbeat(w, contentType, last); err != nil {
					return err
				}
				lastWrite = time.Now()
			}
			select {
			case <-done:
				return nil
			case <-time.After(idle):
			}
			continue
		}

		if err := writePart(w, contentType, data); err != nil {
			return err
		}
		last = data
		lastWrite = time.Now()
	}
}

func writeHeartbeat(w *bufio.Writer, contentType string, last []byte) error {
	if last != nil {
		return writePart(w, contentType, last)
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

func writePart(w *bufio.Writer, contentType string, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		boundary, contentType, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}
