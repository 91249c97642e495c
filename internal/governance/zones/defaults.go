package zones

// DefaultDefinitions is the stock five-zone catalog used when a session
// config does not carry its own.
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: "cool", Name: "Cool", Color: "#6ab8ff", MinHeartRate: 0},
		{ID: "active", Name: "Active", Color: "#51cf66", MinHeartRate: 100, MinPercent: 0.5},
		{ID: "warm", Name: "Warm", Color: "#ffd43b", MinHeartRate: 120, MinPercent: 0.6},
		{ID: "hot", Name: "Hot", Color: "#ff922b", MinHeartRate: 140, MinPercent: 0.7},
		{ID: "fire", Name: "On Fire", Color: "#ff4d4f", MinHeartRate: 160, MinPercent: 0.8},
	}
}
