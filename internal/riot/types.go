package riot

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameStartTimestamp int64              `json:"gameStartTimestamp"` // unix millis
	GameVersion        string             `json:"gameVersion"`
	QueueID            int                `json:"queueId"`
	Participants       []MatchParticipant `json:"participants"`
	Teams              []MatchTeam        `json:"teams"`
}

type MatchParticipant struct {
	PUUID      string `json:"puuid"`
	ChampionID int    `json:"championId"`
	TeamID     int    `json:"teamId"` // 100 = blue, 200 = red
	Win        bool   `json:"win"`
}

type MatchTeam struct {
	TeamID int  `json:"teamId"`
	Win    bool `json:"win"`
}

// Riot team id constants.
const (
	TeamBlue = 100
	TeamRed  = 200
)

// QueueARAM is the Howling Abyss 5v5 ARAM queue.
const QueueARAM = 450
