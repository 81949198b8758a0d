package signals

import (
	"fmt"
	"io"
)

// StdoutSubscriber writes one numeric code per line, the format host processes
// read to drive their loading screens.
type StdoutSubscriber struct {
	Out io.Writer
}

func (s *StdoutSubscriber) ConsumeEvent(sig *StateSignal) error {
	_, err := fmt.Fprintln(s.Out, sig.Code())
	return err
}
