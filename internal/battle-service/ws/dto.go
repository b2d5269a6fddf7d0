package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// BattleID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type     string `json:"type"`     // subscribe | unsubscribe | ping
	BattleID string `json:"battleId"` // requerido em subscribe/unsubscribe
}

// BattleUpdate representa uma atualização (placar/odds/estado) enviada
// para clientes WebSocket inscritos na batalha
type BattleUpdate struct {
	BattleID string      `json:"battleId"`
	Payload  interface{} `json:"payload"`
}
