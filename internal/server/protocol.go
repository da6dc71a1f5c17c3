package server

import (
	"bufio"
	"net"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolWebSocket
)

func (p protocolType) String() string {
	if p == protocolWebSocket {
		return "websocket"
	}
	return "tcp"
}

// detectProtocol peeks at the first byte to determine protocol type.
// A WebSocket opening handshake always starts with "GET "; the raw chat
// protocol starts with a JSON credentials record.
func detectProtocol(conn net.Conn, bufSize int) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReaderSize(conn, bufSize)

	peek, err := reader.Peek(1)
	if err != nil {
		return protocolTCP, reader, err
	}
	if peek[0] == 'G' {
		return protocolWebSocket, reader, nil
	}
	return protocolTCP, reader, nil
}
