package validator

// DefaultSpotChecks are known facts about the pronunciation database that
// must hold after any faithful reconstruction.
var DefaultSpotChecks = []SpotCheck{
	{ID: "pos-9-is-NN", Expect: "NN",
		SQL: `SELECT pos_abbreviation FROM PartOfSpeech WHERE pos_id = 9`},
	{ID: "pos-11-is-NNP", Expect: "NNP",
		SQL: `SELECT pos_abbreviation FROM PartOfSpeech WHERE pos_id = 11`},
	{ID: "pos-14-is-VBD", Expect: "VBD",
		SQL: `SELECT pos_abbreviation FROM PartOfSpeech WHERE pos_id = 14`},
	{ID: "pos-20-is-JJ", Expect: "JJ",
		SQL: `SELECT pos_abbreviation FROM PartOfSpeech WHERE pos_id = 20`},
	{ID: "legacy-pos-inactive", Expect: int64(0),
		SQL: `SELECT is_active FROM PartOfSpeech WHERE pos_id = 1`},
	{ID: "london-tagged-NNP", Expect: "NNP",
		SQL: `SELECT p.pos_abbreviation FROM Words w
		      JOIN PartOfSpeech p ON w.part_of_speech = p.pos_id
		      WHERE LOWER(w.word) = 'london' AND p.pos_abbreviation = 'NNP' LIMIT 1`},
	{ID: "desert-is-heteronym", Expect: int64(2),
		SQL: `SELECT COUNT(*) FROM Words w
		      JOIN PartOfSpeech p ON w.part_of_speech = p.pos_id
		      WHERE LOWER(w.word) = 'desert' AND p.pos_abbreviation IN ('NN', 'VB')`},
	{ID: "desert-noun-stress", Expect: "1-0",
		SQL: `SELECT stress_pattern FROM Variants v
		      JOIN Words w ON v.word_id = w.word_id
		      JOIN PartOfSpeech p ON w.part_of_speech = p.pos_id
		      WHERE LOWER(w.word) = 'desert' AND p.pos_abbreviation = 'NN' LIMIT 1`},
	{ID: "desert-verb-stress", Expect: "0-1",
		SQL: `SELECT stress_pattern FROM Variants v
		      JOIN Words w ON v.word_id = w.word_id
		      JOIN PartOfSpeech p ON w.part_of_speech = p.pos_id
		      WHERE LOWER(w.word) = 'desert' AND p.pos_abbreviation = 'VB' LIMIT 1`},
	{ID: "record-noun-stress", Expect: "0-1",
		SQL: `SELECT stress_pattern FROM Variants v
		      JOIN Words w ON v.word_id = w.word_id
		      JOIN PartOfSpeech p ON w.part_of_speech = p.pos_id
		      WHERE LOWER(w.word) = 'record' AND p.pos_abbreviation = 'NN' LIMIT 1`},
	{ID: "no-null-stress-pattern", Expect: int64(0),
		SQL: `SELECT COUNT(*) FROM Variants WHERE stress_pattern IS NULL`},
	{ID: "no-null-syllable-count", Expect: int64(0),
		SQL: `SELECT COUNT(*) FROM Variants WHERE syllable_count IS NULL`},
	{ID: "heteronym-groups-count", Expect: int64(116),
		SQL: `SELECT COUNT(*) FROM heteronym_groups`},
	{ID: "heteronym-pronunciations-count", Expect: int64(235),
		SQL: `SELECT COUNT(*) FROM heteronym_pronunciations`},
	{ID: "ipa-allowed-chars-count", Expect: int64(611),
		SQL: `SELECT COUNT(*) FROM IpaAllowedChars`},
	{ID: "poslookup-view-functional", Expect: int64(1),
		SQL: `SELECT COUNT(*) FROM POSLookup WHERE abbreviation = 'NN'`},
	{ID: "english-language-present", Expect: "en",
		SQL: `SELECT language_code FROM Languages WHERE language_id = 1`},
}

// DefaultNonEmptyViews are the derived views that must return rows in a
// complete reconstruction.
var DefaultNonEmptyViews = []string{
	"Pronunciations",
	"v_StressPatterns",
	"v_RhymeFinder",
	"unique_pronunciations",
}
