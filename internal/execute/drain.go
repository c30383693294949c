// drain.go copies generator output into the session buffer.
package execute

import (
	"errors"
	"io"
	"os"

	"go.uber.org/zap"
)

// drain reads r until EOF and appends each chunk to buf as soon as the read
// returns, so partial lines are visible to the renderer without waiting for
// a newline. A reader closed underneath it counts as EOF.
func drain(r io.Reader, buf *OutputBuffer, logger *zap.Logger) error {
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Append(string(chunk[:n]))
			logger.Debug("generator output", zap.Int("bytes", n))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
