package server

import "encoding/json"

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Inbound
const (
	MsgPing                   = "ping"
	MsgJoinGame               = "joinGame"
	MsgAddCompany             = "addCompany"
	MsgDeleteCompany          = "deleteCompany"
	MsgStartInvestment        = "startInvestment"
	MsgSubmitAllInvestments   = "submitAllInvestments"
	MsgPlayerReady            = "playerReady"
	MsgResetGame              = "resetGame"
	MsgKickPlayer             = "kickPlayer"
	MsgModifyPlayerInvestment = "modifyPlayerInvestment"
	MsgResetAllGames          = "resetAllGames"
)

// Outbound
const (
	MsgPong                = "pong"
	MsgError               = "error"
	MsgGameState           = "gameState"
	MsgPlayerJoined        = "playerJoined"
	MsgCompanyAdded        = "companyAdded"
	MsgCompanyDeleted      = "companyDeleted"
	MsgInvestmentStarted   = "investmentStarted"
	MsgPlayerSubmitted     = "playerSubmitted"
	MsgAllPlayersSubmitted = "allPlayersSubmitted"
	MsgAllPlayersReady     = "allPlayersReady"
	MsgGameReset           = "gameReset"
	MsgPlayerKicked        = "playerKicked"
	MsgKickedFromGame      = "kickedFromGame"
	MsgPlayerLeft          = "playerLeft"
	MsgGameDeleted         = "gameDeleted"
)
