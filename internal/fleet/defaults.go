package fleet

// DefaultConfig returns the compiled-in fleet knowledge matching the current
// wiki corpus. Deployments tracking other fleets override these values from
// the `fleet:` configuration block; the authoritative category list lives in
// docs/categories.md, not here.
func DefaultConfig() Config {
	return Config{
		Ships: []string{
			"Stardancer",
			"Adagio",
			"Pilgrim",
			"Protector",
			"Manta",
			"Banshee",
		},

		ShipLogCategories: []string{
			"Stardancer Logs",
			"Adagio Logs",
			"Pilgrim Logs",
			"Protector Logs",
			"Manta Logs",
			"Banshee Logs",
			"Mission Logs",
		},

		CharacterCategories: []string{
			"Characters",
			"Personnel",
			"Starfleet Personnel",
			"Civilians",
		},

		ShipCategories: []string{
			"Ships",
			"Starships",
			"Federation Starships",
		},

		// Per-ship speaker corrections. Keys are lowercase raw names as they
		// appear in transcripts; values are canonical character names.
		Corrections: map[string]map[string]string{
			"Stardancer": {
				"maeve":      "Maeve Blaine",
				"blaine":     "Maeve Blaine",
				"fallo":      "Fallo",
				"zarina":     "Zarina Dryellia",
				"dryellia":   "Zarina Dryellia",
				"tavi":       "Tavi",
				"marcus":     "Marcus Antonius",
				"antonius":   "Marcus Antonius",
				"elsie":      "Elsie",
				"t'pral":     "T'Pral",
				"sif":        "Sif",
			},
			"Adagio": {
				"rigel":   "Rigel Antares",
				"antares": "Rigel Antares",
				"talia":   "Talia Karan",
				"karan":   "Talia Karan",
			},
			"Pilgrim": {
				"ankos":  "Ankos Dren",
				"dren":   "Ankos Dren",
				"mira":   "Mira Senn",
				"senn":   "Mira Senn",
			},
		},

		// Fleet-wide fallbacks consulted when the ship table misses.
		GlobalCorrections: map[string]string{
			"maeve":    "Maeve Blaine",
			"fallo":    "Fallo",
			"zarina":   "Zarina Dryellia",
			"tavi":     "Tavi",
			"marcus":   "Marcus Antonius",
			"elsie":    "Elsie",
			"isabella": "Isabella",
			"t'pral":   "T'Pral",
			"sif":      "Sif",
			"rigel":    "Rigel Antares",
			"talia":    "Talia Karan",
			"ankos":    "Ankos Dren",
			"mira":     "Mira Senn",
			"narrator": "Narrator",
		},
	}
}

// StardancerCrew lists the canonical names of the USS Stardancer's current
// crew, used by temporal framing to decide whether retrieved material counts
// as personal experience for Elsie.
func StardancerCrew() []string {
	return []string{
		"Maeve Blaine",
		"Fallo",
		"Zarina Dryellia",
		"Tavi",
		"Marcus Antonius",
		"T'Pral",
		"Sif",
	}
}
