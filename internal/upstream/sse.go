package upstream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// StreamState is the decoder state of a streamed completion.
type StreamState int

const (
	StateReading       StreamState = iota // waiting for the next frame
	StateFrameComplete                    // a fragment was decoded and handed out
	StateTerminated                       // sentinel or clean end of body
	StateAborted                          // the body failed mid-read
)

func (s StreamState) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateFrameComplete:
		return "frame_complete"
	case StateTerminated:
		return "terminated"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// FrameKind classifies one line of the event stream.
type FrameKind int

const (
	FrameSkip     FrameKind = iota // blank, comment, non-data or malformed line
	FrameFragment                  // data frame carrying answer text
	FrameDone                      // data: [DONE]
)

// Frame is the decoded form of one event-stream line.
type Frame struct {
	Kind FrameKind
	Text string
}

const doneSentinel = "[DONE]"

type chunkBody struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ParseFrame decodes a single line. Only "data:" lines matter; a data frame
// without choices[0].delta.content, or with empty content, is skipped.
func ParseFrame(line string) Frame {
	line = strings.TrimRight(line, "\r\n")
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return Frame{Kind: FrameSkip}
	}
	data = strings.TrimPrefix(data, " ")

	if strings.TrimSpace(data) == doneSentinel {
		return Frame{Kind: FrameDone}
	}

	var chunk chunkBody
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return Frame{Kind: FrameSkip}
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return Frame{Kind: FrameSkip}
	}
	text := *chunk.Choices[0].Delta.Content
	if text == "" {
		return Frame{Kind: FrameSkip}
	}
	return Frame{Kind: FrameFragment, Text: text}
}

// Stream yields answer fragments from a streamed completion body.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader

	state StreamState
	err   error

	closeOnce sync.Once
	onFinish  func(state StreamState, err error)
}

// NewStream decodes the event stream read from body.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		reader: bufio.NewReaderSize(body, 64*1024),
		state:  StateReading,
	}
}

// Next returns the next fragment. It returns false once the stream is
// terminated or aborted; check Err to tell them apart.
func (s *Stream) Next() (string, bool) {
	if s.state == StateTerminated || s.state == StateAborted {
		return "", false
	}
	s.state = StateReading

	for {
		line, err := s.reader.ReadString('\n')
		if line != "" {
			frame := ParseFrame(line)
			switch frame.Kind {
			case FrameFragment:
				s.state = StateFrameComplete
				return frame.Text, true
			case FrameDone:
				s.finish(StateTerminated, nil)
				return "", false
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.finish(StateTerminated, nil)
			} else {
				s.finish(StateAborted, fmt.Errorf("read upstream stream: %w", err))
			}
			return "", false
		}
	}
}

// State reports the decoder state.
func (s *Stream) State() StreamState { return s.state }

// Err returns the read failure that aborted the stream, if any.
func (s *Stream) Err() error { return s.err }

// Close releases the upstream body. Closing before the stream reaches a
// terminal state abandons it.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

func (s *Stream) finish(state StreamState, err error) {
	s.state = state
	s.err = err
	if s.onFinish != nil {
		s.onFinish(state, err)
	}
}
