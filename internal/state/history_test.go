package state

import (
	"testing"
	"time"

	"github.com/batonkit/baton/pkg/models"
)

func testGoal(id string, createdAt time.Time) *models.Goal {
	return &models.Goal{
		ID:          id,
		Title:       "write the report",
		Mode:        models.ModeAutonomous,
		Status:      models.GoalStatusExecuting,
		Progress:    0.5,
		CreatedAt:   createdAt,
		LastUpdated: createdAt,
	}
}

func TestSaveGoal_InsertAndUpdate(t *testing.T) {
	store := setupTestStore(t)
	created := time.Now().Add(-time.Hour)

	goal := testGoal("g1", created)
	if err := store.SaveGoal(goal); err != nil {
		t.Fatalf("SaveGoal failed: %v", err)
	}

	rec, err := store.GetGoal("g1")
	if err != nil {
		t.Fatalf("GetGoal failed: %v", err)
	}
	if rec == nil {
		t.Fatal("GetGoal returned nil for saved goal")
	}
	if rec.Title != "write the report" || rec.Status != models.GoalStatusExecuting || rec.Progress != 0.5 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.QualityScore != nil || rec.Result != nil {
		t.Errorf("optional fields should be empty: %+v", rec)
	}

	// Saving again updates the row in place.
	goal.Status = models.GoalStatusCompleted
	goal.Progress = 1.0
	goal.Quality = &models.QualityValidation{OverallScore: 0.87, Passed: true}
	goal.Result = &models.SynthesizedResult{Content: "the report", Confidence: 0.9}
	goal.LastUpdated = created.Add(30 * time.Minute)
	if err := store.SaveGoal(goal); err != nil {
		t.Fatalf("SaveGoal (update) failed: %v", err)
	}

	rec, err = store.GetGoal("g1")
	if err != nil {
		t.Fatalf("GetGoal (after update) failed: %v", err)
	}
	if rec.Status != models.GoalStatusCompleted || rec.Progress != 1.0 {
		t.Errorf("update not applied: %+v", rec)
	}
	if rec.QualityScore == nil || *rec.QualityScore != 0.87 {
		t.Errorf("QualityScore = %v, want 0.87", rec.QualityScore)
	}
	if rec.Result == nil || rec.Result.Content != "the report" {
		t.Errorf("Result = %+v, want synthesized content", rec.Result)
	}
	if !rec.CreatedAt.Equal(created.UTC().Truncate(time.Second)) {
		t.Errorf("CreatedAt changed on update: %v", rec.CreatedAt)
	}

	var count int
	if err := store.QueryRow("SELECT COUNT(*) FROM goals").Scan(&count); err != nil {
		t.Fatalf("count goals: %v", err)
	}
	if count != 1 {
		t.Errorf("goal rows = %d, want 1 (upsert)", count)
	}
}

func TestGetGoal_NotFound(t *testing.T) {
	store := setupTestStore(t)

	rec, err := store.GetGoal("missing")
	if err != nil {
		t.Fatalf("GetGoal failed: %v", err)
	}
	if rec != nil {
		t.Errorf("GetGoal(missing) = %+v, want nil", rec)
	}
}

func TestListGoals(t *testing.T) {
	store := setupTestStore(t)
	base := time.Now()

	// Distinct creation times: stored timestamps have second resolution.
	first := testGoal("g-first", base.Add(-3*time.Hour))
	second := testGoal("g-second", base.Add(-2*time.Hour))
	third := testGoal("g-third", base.Add(-1*time.Hour))
	third.Status = models.GoalStatusCompleted
	for _, g := range []*models.Goal{first, second, third} {
		if err := store.SaveGoal(g); err != nil {
			t.Fatalf("SaveGoal(%s) failed: %v", g.ID, err)
		}
	}

	all, err := store.ListGoals(nil, 0)
	if err != nil {
		t.Fatalf("ListGoals failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListGoals returned %d goals, want 3", len(all))
	}
	// Newest first.
	if all[0].ID != "g-third" || all[2].ID != "g-first" {
		t.Errorf("unexpected order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	completed := models.GoalStatusCompleted
	done, err := store.ListGoals(&completed, 0)
	if err != nil {
		t.Fatalf("ListGoals(completed) failed: %v", err)
	}
	if len(done) != 1 || done[0].ID != "g-third" {
		t.Errorf("status filter returned %+v", done)
	}

	limited, err := store.ListGoals(nil, 2)
	if err != nil {
		t.Fatalf("ListGoals(limit) failed: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "g-third" {
		t.Errorf("limit returned %+v", limited)
	}
}

func TestSaveTask_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	created := time.Now().Add(-time.Hour)
	started := created.Add(time.Minute)

	task := &models.Task{
		ID:             "t1",
		CapabilityType: "research",
		Description:    "gather background",
		Priority:       models.PriorityHigh,
		Status:         models.TaskStatusInProgress,
		RetryCount:     1,
		CreatedAt:      created,
		StartedAt:      &started,
	}
	if err := store.SaveTask("g1", task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	tasks, err := store.ListTasks("g1")
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("ListTasks returned %d tasks, want 1", len(tasks))
	}
	rec := tasks[0]
	if rec.Capability != "research" || rec.Priority != models.PriorityHigh || rec.RetryCount != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.StartedAt == nil || rec.CompletedAt != nil {
		t.Errorf("timestamps wrong: started=%v completed=%v", rec.StartedAt, rec.CompletedAt)
	}

	// Complete the task and save again.
	completed := started.Add(time.Minute)
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &completed
	task.Result = &models.Result{Capability: "research", Content: "findings", Confidence: 0.8}
	if err := store.SaveTask("g1", task); err != nil {
		t.Fatalf("SaveTask (update) failed: %v", err)
	}

	tasks, err = store.ListTasks("g1")
	if err != nil {
		t.Fatalf("ListTasks (after update) failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("task rows = %d, want 1 (upsert)", len(tasks))
	}
	rec = tasks[0]
	if rec.Status != models.TaskStatusCompleted || rec.CompletedAt == nil {
		t.Errorf("update not applied: %+v", rec)
	}
	if rec.Result == nil || rec.Result.Content != "findings" {
		t.Errorf("Result = %+v, want stored capability result", rec.Result)
	}
}

func TestListTasks_ScopedToGoal(t *testing.T) {
	store := setupTestStore(t)
	base := time.Now().Add(-time.Hour)

	for i, spec := range []struct{ goalID, taskID string }{
		{"g1", "t1"}, {"g1", "t2"}, {"g2", "t3"},
	} {
		task := &models.Task{
			ID:             spec.taskID,
			CapabilityType: "produce",
			Status:         models.TaskStatusPending,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveTask(spec.goalID, task); err != nil {
			t.Fatalf("SaveTask(%s) failed: %v", spec.taskID, err)
		}
	}

	tasks, err := store.ListTasks("g1")
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("ListTasks(g1) returned %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "t1" || tasks[1].ID != "t2" {
		t.Errorf("unexpected order: %s, %s", tasks[0].ID, tasks[1].ID)
	}
}

func TestEvents_RecordAndList(t *testing.T) {
	store := setupTestStore(t)

	for _, e := range []struct{ typ, msg string }{
		{"goal_submitted", "write the report"},
		{"goal_planned", "3 tasks in 2 phases"},
		{"task_started", "gather background"},
		{"goal_completed", "quality 0.90"},
	} {
		if err := store.RecordEvent("g1", e.typ, e.msg); err != nil {
			t.Fatalf("RecordEvent(%s) failed: %v", e.typ, err)
		}
	}
	if err := store.RecordEvent("g2", "goal_submitted", "another goal"); err != nil {
		t.Fatalf("RecordEvent(g2) failed: %v", err)
	}

	events, err := store.ListEvents("g1", 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("ListEvents returned %d events, want 4", len(events))
	}
	// Oldest first.
	if events[0].Type != "goal_submitted" || events[3].Type != "goal_completed" {
		t.Errorf("unexpected order: first=%s last=%s", events[0].Type, events[3].Type)
	}
	if events[1].Message != "3 tasks in 2 phases" {
		t.Errorf("Message = %q", events[1].Message)
	}

	// A limit keeps the most recent events, still oldest first.
	tail, err := store.ListEvents("g1", 2)
	if err != nil {
		t.Fatalf("ListEvents(limit) failed: %v", err)
	}
	if len(tail) != 2 || tail[0].Type != "task_started" || tail[1].Type != "goal_completed" {
		t.Errorf("limited events = %+v", tail)
	}
}
