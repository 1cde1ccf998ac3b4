package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxStringLen caps a single length-prefixed string on the wire. It
// exists so a corrupted or hostile length prefix can't make Decode
// attempt a multi-gigabyte allocation; it is far above anything a real
// log line, path, or prompt would need.
const maxStringLen = 64 << 20 // 64 MiB

// maxSliceLen caps the element count of a length-prefixed string
// slice (BuildRequest's Args/Env). It is checked before make([]string,
// n) runs, separately from maxStringLen: a slice length prefix is a
// count of headers, not bytes, so bounding it against the byte-sized
// maxStringLen would still let a hostile prefix force a multi-gigabyte
// slice allocation before a single element is read.
const maxSliceLen = 1 << 16 // 65536 entries

// Encode writes one frame for m to w: the discriminator byte followed
// by the variant's payload. It does not flush; callers that wrap w in
// a *bufio.Writer are responsible for flushing (see Transport.Flush).
func Encode(w io.Writer, m Message) error {
	if _, err := w.Write([]byte{byte(m.Kind())}); err != nil {
		return err
	}
	switch v := m.(type) {
	case BuildRequest:
		if err := writeString(w, v.ProjectDir); err != nil {
			return err
		}
		if err := writeStringSlice(w, v.Args); err != nil {
			return err
		}
		return writeStringSlice(w, v.Env)
	case BuildStarted:
		return writeInt32(w, v.PID)
	case ProjectEvent:
		return writeString(w, v.Text)
	case LogLine:
		return writeString(w, v.Text)
	case Prompt:
		return writeString(w, v.Text)
	case PromptResponse:
		return writeString(w, v.Text)
	case KeepAlive:
		return nil
	case CancelBuild:
		return nil
	case BuildFinished:
		return writeInt32(w, v.ExitCode)
	default:
		return fmt.Errorf("%w: encode: unhandled message type %T", ErrProtocol, m)
	}
}

// Decode reads one frame from r. On a clean EOF before any byte of a
// new frame is read, it returns (nil, io.EOF) — the sentinel the
// Transport turns into the "no more messages" signal. Any other error,
// including a partial frame, is wrapped in ErrProtocol.
func Decode(r io.Reader) (Message, error) {
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading discriminator: %v", ErrProtocol, err)
	}

	kind := Kind(kindByte[0])
	switch kind {
	case KindBuildRequest:
		projectDir, err := readString(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		args, err := readStringSlice(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		env, err := readStringSlice(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		return BuildRequest{ProjectDir: projectDir, Args: args, Env: env}, nil
	case KindBuildStarted:
		pid, err := readInt32(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		return BuildStarted{PID: pid}, nil
	case KindProjectEvent:
		text, err := readString(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		return ProjectEvent{Text: text}, nil
	case KindLogLine:
		text, err := readString(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		return LogLine{Text: text}, nil
	case KindPrompt:
		text, err := readString(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		return Prompt{Text: text}, nil
	case KindPromptResponse:
		text, err := readString(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		return PromptResponse{Text: text}, nil
	case KindKeepAlive:
		return KeepAlive{}, nil
	case KindCancelBuild:
		return CancelBuild{}, nil
	case KindBuildFinished:
		code, err := readInt32(r)
		if err != nil {
			return nil, frameErr(kind, err)
		}
		return BuildFinished{ExitCode: code}, nil
	default:
		return nil, fmt.Errorf("%w: unknown discriminator %d", ErrProtocol, kindByte[0])
	}
}

func frameErr(kind Kind, err error) error {
	return fmt.Errorf("%w: truncated %s frame: %v", ErrProtocol, kind, err)
}

func writeInt32(w io.Writer, v int32) error {
	return binary.Write(w, binary.BigEndian, v)
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds maximum %d", n, maxStringLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStringSlice(w io.Writer, ss []string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(r io.Reader) ([]string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n > maxSliceLen {
		return nil, fmt.Errorf("string slice length %d exceeds maximum %d", n, maxSliceLen)
	}
	if n == 0 {
		// An empty slice decodes as nil, so a nil Args/Env round-trips.
		return nil, nil
	}
	ss := make([]string, n)
	for i := range ss {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		ss[i] = s
	}
	return ss, nil
}
