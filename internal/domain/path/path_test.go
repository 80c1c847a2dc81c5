package path

import "testing"

func step(id string, topics int) Step {
	kt := make([]string, topics)
	for i := range kt {
		kt[i] = "topic"
	}
	return Step{VideoID: id, KeyTopics: kt}
}

func TestLearningPath_Check(t *testing.T) {
	tests := []struct {
		name   string
		path   LearningPath
		wantOK bool
	}{
		{"five steps", LearningPath{Videos: []Step{step("a", 3), step("b", 3), step("c", 4), step("d", 5), step("e", 3)}}, true},
		{"three steps", LearningPath{Videos: []Step{step("a", 3), step("b", 3), step("c", 3)}}, false},
		{"eight steps", LearningPath{Videos: []Step{step("a", 3), step("b", 3), step("c", 3), step("d", 3), step("e", 3), step("f", 3), step("g", 3), step("h", 3)}}, false},
		{"thin topics", LearningPath{Videos: []Step{step("a", 1), step("b", 3), step("c", 3), step("d", 3), step("e", 3)}}, false},
		{"crowded topics", LearningPath{Videos: []Step{step("a", 6), step("b", 3), step("c", 3), step("d", 3), step("e", 3)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.path.Check()
			if ok != tt.wantOK {
				t.Errorf("Check() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestLearningPath_CheckCounts(t *testing.T) {
	s, _ := LearningPath{Videos: []Step{step("a", 1), step("b", 2), step("c", 3), step("d", 5), step("e", 8)}}.Check()
	if s.Steps != 5 || s.StepsOffTopicBounds != 3 {
		t.Errorf("unexpected shortfall %+v", s)
	}
}

func TestContext(t *testing.T) {
	got := Context([]Candidate{{VideoID: "abc", Title: "Intro to JS"}, {VideoID: "def", Title: "Closures"}})
	want := "- \"Intro to JS\" (abc)\n- \"Closures\" (def)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
