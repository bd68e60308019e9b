package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// skillTerms is the keyword bank mined from descriptions, grouped loosely by
// languages, frameworks, cloud/devops, data/API, ML, and process tools.
var skillTerms = []string{
	// languages
	`Python`, `Java`, `JavaScript`, `TypeScript`, `Golang`, `C\+\+`, `C#`, `Ruby`,
	`PHP`, `Swift`, `Kotlin`, `Scala`, `Rust`, `Perl`, `SQL`, `Bash`,
	// frameworks
	`React(?:\.js)?`, `Angular`, `Vue(?:\.js)?`, `Node(?:\.js)?`, `Django`, `Flask`,
	`Spring(?: Boot)?`, `\.NET`, `Express(?:\.js)?`, `Ruby on Rails`, `Next\.js`,
	// cloud and devops
	`AWS`, `Azure`, `GCP`, `Google Cloud`, `Docker`, `Kubernetes`, `Terraform`,
	`Jenkins`, `Ansible`, `CI/CD`, `Linux`, `Git`, `DevOps`,
	// data stores and APIs
	`PostgreSQL`, `MySQL`, `MongoDB`, `Redis`, `Elasticsearch`, `Kafka`, `GraphQL`,
	`REST(?:ful)?(?: APIs?)?`, `NoSQL`, `Oracle`, `Snowflake`, `Spark`, `Hadoop`,
	// machine learning
	`Machine Learning`, `Deep Learning`, `TensorFlow`, `PyTorch`, `Pandas`, `NumPy`,
	`scikit-learn`, `NLP`, `Tableau`, `Power BI`,
	// process and tooling
	`Agile`, `Scrum`, `Jira`, `Microservices`,
}

type skillPattern struct {
	re *regexp.Regexp
}

var skillPatterns = compileSkillPatterns(skillTerms)

func compileSkillPatterns(terms []string) []skillPattern {
	out := make([]skillPattern, 0, len(terms))
	for _, term := range terms {
		// Go regexp has no lookaround, so boundaries are explicit character
		// classes; + # . are treated as word characters to keep "C++" and
		// "JavaScript" from matching "C" or "Java".
		re := regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9_+#.])(` + term + `)(?:[^A-Za-z0-9_+#]|$)`)
		out = append(out, skillPattern{re: re})
	}
	return out
}

// ExtractSkills returns the distinct skill keywords found in text, as they are
// spelled in the text, ordered by first occurrence.
func ExtractSkills(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	type hit struct {
		pos   int
		order int
		value string
	}
	hits := make([]hit, 0)
	for i, p := range skillPatterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		hits = append(hits, hit{pos: loc[2], order: i, value: text[loc[2]:loc[3]]})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].pos != hits[b].pos {
			return hits[a].pos < hits[b].pos
		}
		return hits[a].order < hits[b].order
	})
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.value)
	}
	return MergeUnique(out)
}

// MergeUnique concatenates lists, dropping blanks and case-insensitive
// duplicates while keeping the first spelling and order.
func MergeUnique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			key := strings.ToLower(v)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
