package summary

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"about", "above", "after", "again", "against", "all", "also", "and", "any", "are",
		"because", "been", "before", "being", "below", "between", "both", "but", "can",
		"could", "did", "does", "doing", "down", "during", "each", "few", "for", "from",
		"further", "had", "has", "have", "having", "her", "here", "hers", "herself", "him",
		"himself", "his", "how", "into", "its", "itself", "just", "more", "most", "not",
		"now", "off", "once", "only", "other", "our", "ours", "ourselves", "out", "over",
		"own", "same", "she", "should", "some", "such", "than", "that", "the", "their",
		"theirs", "them", "themselves", "then", "there", "these", "they", "this", "those",
		"through", "too", "under", "until", "very", "was", "were", "what", "when", "where",
		"which", "while", "who", "whom", "why", "will", "with", "would", "you", "your",
		"yours", "yourself", "yourselves",
	} {
		stopWords[w] = struct{}{}
	}
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
