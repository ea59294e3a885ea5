package session

// Word corpora are versioned and embedded: the corpus version a client
// played against is part of the verification contract, so every version
// ever shipped stays reproducible here. Lists must never be reordered or
// edited in place; changes ship as a new version.

// CorpusV1 is the launch word list.
const CorpusV1 = "v1"

var corpora = map[string][]string{
	CorpusV1: corpusV1Words,
}

var corpusV1Words = []string{
	"able", "about", "above", "accept", "across", "action", "advance",
	"after", "again", "against", "agree", "ahead", "allow", "almost",
	"alone", "along", "already", "always", "among", "anchor", "answer",
	"appear", "around", "arrive", "attack", "avoid", "balance", "battle",
	"became", "become", "before", "begin", "behind", "believe", "below",
	"better", "between", "beyond", "bother", "bottom", "branch", "breath",
	"bridge", "bright", "brought", "butter", "camera", "cannot", "carbon",
	"castle", "center", "chance", "change", "charge", "choose", "circle",
	"clear", "close", "cloud", "collect", "combine", "coming", "common",
	"corner", "count", "cover", "create", "custom", "danger", "decide",
	"defend", "degree", "deliver", "descend", "design", "detail", "device",
	"differ", "direct", "distant", "double", "dragon", "dream", "drive",
	"during", "early", "earth", "easily", "effect", "effort", "either",
	"eleven", "emerge", "empty", "enable", "energy", "engine", "enough",
	"enter", "entire", "escape", "evening", "every", "exact", "expect",
	"explain", "extend", "fabric", "falcon", "family", "famous", "fasten",
	"father", "field", "figure", "final", "finger", "finish", "flight",
	"follow", "forest", "forget", "format", "fortune", "forward", "friend",
	"future", "garden", "gather", "gentle", "glance", "global", "golden",
	"ground", "growth", "guard", "handle", "happen", "harbor", "hidden",
	"hollow", "honest", "hunger", "imagine", "impact", "import", "indeed",
	"inside", "intend", "island", "itself", "journey", "jungle", "kernel",
	"kitchen", "ladder", "launch", "leader", "legend", "length", "letter",
	"level", "light", "likely", "listen", "little", "living", "longer",
	"luck", "machine", "manage", "manner", "marble", "master", "matter",
	"meadow", "measure", "member", "memory", "method", "middle", "minute",
	"mirror", "modern", "moment", "motion", "mountain", "moving", "museum",
	"narrow", "nation", "nature", "nearly", "needle", "neither", "network",
	"normal", "notice", "number", "object", "obtain", "occur", "ocean",
	"offer", "office", "often", "orange", "orbit", "order", "origin",
	"output", "oxygen", "palace", "paper", "parent", "partly", "people",
	"perfect", "perhaps", "period", "permit", "person", "picture", "planet",
	"plastic", "please", "plenty", "pocket", "point", "police", "portal",
	"power", "prepare", "present", "pretty", "prince", "prison", "problem",
	"proper", "protect", "proud", "public", "purple", "puzzle", "quick",
	"quiet", "rabbit", "raise", "random", "rather", "reach", "ready",
	"reason", "recent", "record", "reduce", "region", "remain", "remember",
	"remove", "repeat", "replace", "report", "rescue", "result", "return",
	"reveal", "reward", "rhythm", "ribbon", "river", "rocket", "rough",
	"round", "saddle", "safety", "salmon", "sample", "school", "scream",
	"screen", "search", "season", "second", "secret", "sector", "seldom",
	"sense", "serve", "settle", "seven", "shadow", "shelter", "shield",
	"shine", "should", "signal", "silent", "silver", "simple", "single",
	"sister", "smooth", "social", "source", "spirit", "spread", "spring",
	"square", "stable", "station", "steady", "stone", "storm", "story",
	"stream", "street", "strong", "studio", "subject", "sudden", "summer",
	"sunset", "supply", "surface", "survive", "switch", "symbol", "system",
	"table", "talent", "target", "temple", "tender", "theory", "thirty",
	"thought", "thread", "thunder", "ticket", "timber", "tissue", "toward",
	"travel", "treasure", "tunnel", "turtle", "twelve", "twenty", "under",
	"unique", "unite", "unless", "update", "upper", "useful", "valley",
	"value", "velvet", "version", "victory", "village", "violet", "vision",
	"visit", "volume", "voyage", "wander", "water", "weapon", "weather",
	"welcome", "window", "winter", "wisdom", "wonder", "worker", "world",
	"worry", "writer", "yellow", "young",
}

// Words returns the word list for version, or ErrUnknownCorpus.
func Words(version string) ([]string, error) {
	words, ok := corpora[version]
	if !ok {
		return nil, ErrUnknownCorpus
	}
	return words, nil
}

// KnownVersions lists the corpus versions this build can replay.
func KnownVersions() []string {
	versions := make([]string, 0, len(corpora))
	for v := range corpora {
		versions = append(versions, v)
	}
	return versions
}
