package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type              string   `json:"type"`
	ProtocolVersion   string   `json:"protocol_version"`
	SupportedVersions []string `json:"supported_versions,omitempty"`
	ClientName        string   `json:"client_name"`
	WorldPreference   string   `json:"world_preference,omitempty"`
	// SubscribePower opts into POWER and RETIRE pushes for the current world.
	SubscribePower bool `json:"subscribe_power,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SelectedVersion string         `json:"selected_version,omitempty"`
	SessionID       string         `json:"session_id"`
	CurrentWorldID  string         `json:"current_world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	WorldManifest   []WorldRef     `json:"world_manifest,omitempty"`
}

type WorldRef struct {
	WorldID   string `json:"world_id"`
	WorldType string `json:"world_type,omitempty"`
	BoundaryR int    `json:"boundary_r,omitempty"`
}

type WorldParams struct {
	TickRateHz     int    `json:"tick_rate_hz"`
	ChunkSize      [3]int `json:"chunk_size"`
	MinY           int    `json:"min_y"`
	MaxY           int    `json:"max_y"`
	MaxNetworkSize int    `json:"max_network_size"`
}

type CatalogDigests struct {
	BlockPalette DigestRef `json:"block_palette"`
	BlockDefs    string    `json:"block_defs_digest"`
	TuningDigest string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// COMMAND (client -> server): one /conduit command line.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	WorldID         string `json:"world_id,omitempty"`
	Line            string `json:"line"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message"`
	WorldID         string `json:"world_id,omitempty"`
	ServerTick      uint64 `json:"server_tick"`
}

// POWER (server -> client): one completed network recalculation.
type PowerMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	WorldID         string        `json:"world_id"`
	Tick            uint64        `json:"tick"`
	NetworkID       uint64        `json:"network_id"`
	Reason          string        `json:"reason"`
	Members         int           `json:"members"`
	Sources         int           `json:"sources"`
	OverBudget      bool          `json:"over_budget,omitempty"`
	Changes         []PowerChange `json:"changes"`
}

type PowerChange struct {
	Pos  [3]int `json:"pos"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// RETIRE (server -> client): a network id left service.
type RetireMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`
	NetworkID       uint64 `json:"network_id"`
	Reason          string `json:"reason"`
	Into            uint64 `json:"into,omitempty"`
}
