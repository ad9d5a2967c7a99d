package main

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/repcrec/repcrec/pkg/wire"
)

// dialAndAuth opens a connection to a repcrec-server. This protocol has no
// handshake, so it is just a dial with a short timeout.
func dialAndAuth(addr string) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, 5*time.Second)
}

// sendRemoteLine sends one command line and returns the event lines the
// server produced, using the same length-prefixed msgpack framing as
// pkg/server.
func sendRemoteLine(conn net.Conn, line string) ([]string, error) {
	msg := wire.NewCommandMessage(line)
	data, err := wire.Encode(msg)
	if err != nil {
		return nil, err
	}
	if err := binary.Write(conn, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := conn.Write(data); err != nil {
		return nil, err
	}

	var length uint32
	if err := binary.Read(conn, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}

	var event wire.EventMessage
	if err := wire.Decode(payload, &event); err != nil {
		return nil, err
	}
	if event.Error != "" {
		return nil, errString(event.Error)
	}
	return event.Events, nil
}

type errString string

func (e errString) Error() string { return string(e) }
