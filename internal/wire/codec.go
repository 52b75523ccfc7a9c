package wire

import (
	"encoding/binary"
	"io"
)

func readFull(r io.Reader, buf []byte, first bool) error {
	_, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if first && err == io.EOF {
		return ErrDisconnected
	}
	return ErrShortRead
}

func readUint32(r io.Reader, first bool) (uint32, error) {
	var buf [widthID]byte
	if err := readFull(r, buf[:], first); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [widthID]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadClientMessage decodes exactly one client-originated message from r.
//
// It reads exactly the bytes the type requires. An unrecognized type byte
// yields *InvalidTypeError. A clean close before any bytes of a new
// message arrive yields ErrDisconnected; any other short read yields
// ErrShortRead.
func ReadClientMessage(r io.Reader) (*Message, error) {
	var typeBuf [widthType]byte
	if err := readFull(r, typeBuf[:], true); err != nil {
		return nil, err
	}
	t := Type(typeBuf[0])

	m := &Message{Type: t}

	switch t {
	case DocActivate:
		id, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.ID = int32(id)
		var h [widthHash]byte
		if err := readFull(r, h[:], false); err != nil {
			return nil, err
		}
		m.Hash = Hash(h)

	case DocCreate, DocDelete, DocOpen:
		var name [widthDocName]byte
		if err := readFull(r, name[:], false); err != nil {
			return nil, err
		}
		m.Name = trimName(name[:])

	case DocSave:
		id, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.ID = int32(id)

	case DocList:
		// no further fields

	case SyncByte:
		pos, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.Position = int32(pos)
		var b [widthByte]byte
		if err := readFull(r, b[:], false); err != nil {
			return nil, err
		}
		m.Bytes = []byte{b[0]}

	case SyncCursor:
		pos, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.Position = int32(pos)

	case SyncDeletion:
		pos, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		length, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.Position = int32(pos)
		m.Length = int32(length)

	case SyncMultibyte:
		pos, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		length, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.Position = int32(pos)
		m.Length = int32(length)
		buf := make([]byte, length)
		if err := readFull(r, buf, false); err != nil {
			return nil, err
		}
		m.Bytes = buf

	case UserLogin:
		var name [widthUserName]byte
		if err := readFull(r, name[:], false); err != nil {
			return nil, err
		}
		var h [widthHash]byte
		if err := readFull(r, h[:], false); err != nil {
			return nil, err
		}
		m.Name = trimName(name[:])
		m.Hash = Hash(h)

	case UserLogout:
		// no further fields

	default:
		return nil, &InvalidTypeError{Got: typeBuf[0]}
	}

	return m, nil
}

// Encode returns the server-originated wire encoding of m. It's a thin
// convenience over WriteServerMessage for callers (the handler, the
// registry) that need the bytes rather than a stream to write to.
func Encode(m *Message) ([]byte, error) {
	var buf sliceWriter
	if err := WriteServerMessage(&buf, m); err != nil {
		return nil, err
	}
	return buf.b, nil
}

type sliceWriter struct{ b []byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// WriteServerMessage encodes one server-originated message (a response or
// broadcast) to w, using each type's server->client field schedule.
func WriteServerMessage(w io.Writer, m *Message) error {
	if _, err := w.Write([]byte{byte(m.Type)}); err != nil {
		return err
	}

	switch m.Type {
	case DocActivate:
		if _, err := w.Write([]byte{byte(m.Status)}); err != nil {
			return err
		}
		return writeUint32(w, uint32(m.ID))

	case DocCreate, DocDelete:
		if _, err := w.Write([]byte{byte(m.Status)}); err != nil {
			return err
		}
		_, err := w.Write(padName(m.Name, widthDocName))
		return err

	case DocOpen:
		if _, err := w.Write([]byte{byte(m.Status)}); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(m.ID)); err != nil {
			return err
		}
		_, err := w.Write(padName(m.Name, widthDocName))
		return err

	case DocSave:
		if _, err := w.Write([]byte{byte(m.Status)}); err != nil {
			return err
		}
		return writeUint32(w, uint32(m.ID))

	case DocList:
		if err := writeUint32(w, uint32(m.Length)); err != nil {
			return err
		}
		_, err := w.Write(m.Bytes)
		return err

	case Status:
		_, err := w.Write([]byte{byte(m.Status)})
		return err

	case SyncByte:
		if err := writeUint32(w, uint32(m.Position)); err != nil {
			return err
		}
		_, err := w.Write(m.Bytes[:1])
		return err

	case SyncDeletion:
		if err := writeUint32(w, uint32(m.Position)); err != nil {
			return err
		}
		return writeUint32(w, uint32(m.Length))

	case SyncMultibyte:
		if err := writeUint32(w, uint32(m.Position)); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(m.Length)); err != nil {
			return err
		}
		_, err := w.Write(m.Bytes)
		return err

	case UserLogin, UserLogout:
		_, err := w.Write([]byte{byte(m.Status)})
		return err

	case UserJoin:
		if err := writeUint32(w, uint32(m.ID)); err != nil {
			return err
		}
		_, err := w.Write(padName(m.Name, widthUserName))
		return err

	case UserQuit:
		return writeUint32(w, uint32(m.ID))

	default:
		return &InvalidTypeError{Got: byte(m.Type)}
	}
}

// WriteClientMessage and ReadServerMessage exist only so tests can
// simulate a client and assert round-trip behavior without a second
// process.

// WriteClientMessage encodes m using its client->server field schedule.
func WriteClientMessage(w io.Writer, m *Message) error {
	if _, err := w.Write([]byte{byte(m.Type)}); err != nil {
		return err
	}

	switch m.Type {
	case DocActivate:
		if err := writeUint32(w, uint32(m.ID)); err != nil {
			return err
		}
		_, err := w.Write(m.Hash[:])
		return err

	case DocCreate, DocDelete, DocOpen:
		_, err := w.Write(padName(m.Name, widthDocName))
		return err

	case DocSave:
		return writeUint32(w, uint32(m.ID))

	case DocList:
		return nil

	case SyncByte:
		if err := writeUint32(w, uint32(m.Position)); err != nil {
			return err
		}
		_, err := w.Write(m.Bytes[:1])
		return err

	case SyncCursor:
		return writeUint32(w, uint32(m.Position))

	case SyncDeletion:
		if err := writeUint32(w, uint32(m.Position)); err != nil {
			return err
		}
		return writeUint32(w, uint32(m.Length))

	case SyncMultibyte:
		if err := writeUint32(w, uint32(m.Position)); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(m.Length)); err != nil {
			return err
		}
		_, err := w.Write(m.Bytes)
		return err

	case UserLogin:
		if _, err := w.Write(padName(m.Name, widthUserName)); err != nil {
			return err
		}
		_, err := w.Write(m.Hash[:])
		return err

	case UserLogout:
		return nil

	default:
		return &InvalidTypeError{Got: byte(m.Type)}
	}
}

// ReadServerMessage decodes one server-originated message, using each
// type's server->client field schedule.
func ReadServerMessage(r io.Reader) (*Message, error) {
	var typeBuf [widthType]byte
	if err := readFull(r, typeBuf[:], true); err != nil {
		return nil, err
	}
	t := Type(typeBuf[0])
	m := &Message{Type: t}

	readStatus := func() error {
		var s [widthStatus]byte
		if err := readFull(r, s[:], false); err != nil {
			return err
		}
		m.Status = StatusCode(s[0])
		return nil
	}

	switch t {
	case DocActivate:
		if err := readStatus(); err != nil {
			return nil, err
		}
		id, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.ID = int32(id)

	case DocCreate, DocDelete:
		if err := readStatus(); err != nil {
			return nil, err
		}
		var name [widthDocName]byte
		if err := readFull(r, name[:], false); err != nil {
			return nil, err
		}
		m.Name = trimName(name[:])

	case DocOpen:
		if err := readStatus(); err != nil {
			return nil, err
		}
		id, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.ID = int32(id)
		var name [widthDocName]byte
		if err := readFull(r, name[:], false); err != nil {
			return nil, err
		}
		m.Name = trimName(name[:])

	case DocSave:
		if err := readStatus(); err != nil {
			return nil, err
		}
		id, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.ID = int32(id)

	case DocList:
		length, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.Length = int32(length)
		buf := make([]byte, int(length)*widthDocName)
		if err := readFull(r, buf, false); err != nil {
			return nil, err
		}
		m.Bytes = buf

	case Status:
		if err := readStatus(); err != nil {
			return nil, err
		}

	case SyncByte:
		pos, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.Position = int32(pos)
		var b [widthByte]byte
		if err := readFull(r, b[:], false); err != nil {
			return nil, err
		}
		m.Bytes = []byte{b[0]}

	case SyncDeletion:
		pos, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		length, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.Position = int32(pos)
		m.Length = int32(length)

	case SyncMultibyte:
		pos, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		length, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.Position = int32(pos)
		m.Length = int32(length)
		buf := make([]byte, length)
		if err := readFull(r, buf, false); err != nil {
			return nil, err
		}
		m.Bytes = buf

	case UserLogin, UserLogout:
		if err := readStatus(); err != nil {
			return nil, err
		}

	case UserJoin:
		id, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.ID = int32(id)
		var name [widthUserName]byte
		if err := readFull(r, name[:], false); err != nil {
			return nil, err
		}
		m.Name = trimName(name[:])

	case UserQuit:
		id, err := readUint32(r, false)
		if err != nil {
			return nil, err
		}
		m.ID = int32(id)

	default:
		return nil, &InvalidTypeError{Got: typeBuf[0]}
	}

	return m, nil
}
