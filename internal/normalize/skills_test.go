package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractSkills(t *testing.T) {
	t.Parallel()

	got := ExtractSkills("We need Python, JavaScript, and Java developers")
	require.Contains(t, got, "Python")
	require.Contains(t, got, "JavaScript")
	require.Contains(t, got, "Java")
	require.Equal(t, []string{"Python", "JavaScript", "Java"}, got)
}

func TestExtractSkillsBoundaries(t *testing.T) {
	t.Parallel()

	got := ExtractSkills("Experience with C++ and C#, deploying to aws via Docker/Kubernetes. We trust Git.")
	require.Equal(t, []string{"C++", "C#", "aws", "Docker", "Kubernetes", "Git"}, got)
	require.NotContains(t, got, "Rust")
}

func TestExtractSkillsDeduplicates(t *testing.T) {
	t.Parallel()

	got := ExtractSkills("python python PYTHON and Node.js")
	require.Equal(t, []string{"python", "Node.js"}, got)
	require.Nil(t, ExtractSkills("   "))
}

func TestMergeUnique(t *testing.T) {
	t.Parallel()

	got := MergeUnique([]string{"Go", "AWS", " "}, []string{"aws", "Terraform", "go"})
	require.Equal(t, []string{"Go", "AWS", "Terraform"}, got)
}
