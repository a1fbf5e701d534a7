package session

import "strings"

type topicGroup struct {
	tag   string
	words []string
}

// Groups are checked in order; a query can carry several tags.
var topicGroups = []topicGroup{
	{"containerization", []string{"docker", "container", "kubernetes"}},
	{"programming", []string{"python", "javascript", "java", "code"}},
	{"linux_administration", []string{"bash", "shell", "linux", "command"}},
	{"version_control", []string{"git", "github", "repository", "commit"}},
	{"networking", []string{"network", "ssh", "firewall", "port"}},
	{"database", []string{"database", "sql", "mysql", "postgres"}},
}

// DetectTopics returns the topic tags whose trigger words occur in query.
func DetectTopics(query string) []string {
	lower := strings.ToLower(query)
	var tags []string
	for _, g := range topicGroups {
		for _, w := range g.words {
			if strings.Contains(lower, w) {
				tags = append(tags, g.tag)
				break
			}
		}
	}
	return tags
}
