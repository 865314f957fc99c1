package signal

func (ctl *EventsWSController) handlePing(conn *wsConn) {
	ctl.Hub.Send(conn, outbound{Type: msgPong})
}

func (ctl *EventsWSController) sendError(conn *wsConn, err error) {
	ctl.Hub.Send(conn, outbound{Type: msgError, Data: map[string]string{"error": err.Error()}})
}
