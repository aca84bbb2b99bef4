package model

import "time"

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "Assigned"
	AssignmentInProgress AssignmentStatus = "InProgress"
	AssignmentCompleted  AssignmentStatus = "Completed"
	AssignmentChecked    AssignmentStatus = "Checked"
)

type User struct {
	ID        string `json:"id"`
	GithubID  string `json:"githubId,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

type Course struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Alias       string     `json:"alias,omitempty"`
	Description string     `json:"description,omitempty"`
	Year        int        `json:"year,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CourseStudent is one student's enrollment in one course. Mentors is ordered
// with the current mentor first.
type CourseStudent struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"courseId"`
	UserID    string    `json:"userId"`
	Mentors   []string  `json:"mentors"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s CourseStudent) CurrentMentor() string {
	if len(s.Mentors) == 0 {
		return ""
	}
	return s.Mentors[0]
}

// EnrolledStudent is a CourseStudent joined with its user and the users of its mentors.
type EnrolledStudent struct {
	CourseStudent
	User        User   `json:"user"`
	MentorUsers []User `json:"mentorUsers"`
}

type Assignment struct {
	ID           string           `json:"id"`
	CourseID     string           `json:"courseId"`
	TaskID       string           `json:"taskId"`
	StudentID    string           `json:"studentId"`
	MentorID     string           `json:"mentorId,omitempty"`
	DeadlineDate *time.Time       `json:"deadlineDate,omitempty"`
	Status       AssignmentStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// StudentTask pairs a course task with one student's assignment for it.
type StudentTask struct {
	Task       Task        `json:"task"`
	Assignment *Assignment `json:"assignment,omitempty"`
}
