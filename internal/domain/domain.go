package domain

// Project is a 5W2H project as returned by the backend.
type Project struct {
	ID             ID            `json:"id"`
	ProjectNumber  int           `json:"projectNumber,omitempty"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Origin         string        `json:"origin,omitempty"`
	OriginNumber   int           `json:"originNumber,omitempty"`
	OriginDate     string        `json:"originDate,omitempty"`
	Status         ProjectStatus `json:"status"`
	UserID         ID            `json:"userId,omitempty"`
	ActionIDs      []ID          `json:"actionIds,omitempty"`
	CreatedAt      Timestamp     `json:"createdAt"`
	StartedAt      Timestamp     `json:"startedAt"`
	CompletedAt    Timestamp     `json:"completedAt"`
	ConclusionText string        `json:"conclusionText,omitempty"`
	IsDeleted      bool          `json:"isDeleted,omitempty"`
}

// Concluded reports whether a conclusion text has already been stored.
func (p Project) Concluded() bool { return hasText(p.ConclusionText) }

// Editable reports whether metadata may still change.
func (p Project) Editable() bool {
	return p.Status == ProjectCreated || p.Status == ProjectInProgress
}

// Action is one 5W2H line item attached to a project.
type Action struct {
	ID             ID           `json:"id"`
	ProjectID      ID           `json:"projectId,omitempty"`
	UserID         ID           `json:"userId,omitempty"`
	Title          string       `json:"title"`
	What           string       `json:"what"`
	Why            string       `json:"why"`
	When           string       `json:"when"`
	Where          string       `json:"where"`
	Who            string       `json:"who"`
	How            string       `json:"how"`
	HowMuch        float64      `json:"howMuch"`
	Status         ActionStatus `json:"status"`
	CreatedAt      Timestamp    `json:"createdAt"`
	StartedAt      Timestamp    `json:"startedAt"`
	CompletedAt    Timestamp    `json:"completedAt"`
	ConclusionText string       `json:"conclusionText,omitempty"`
	IsDeleted      bool         `json:"isDeleted,omitempty"`
}

func (a Action) Concluded() bool { return hasText(a.ConclusionText) }

type User struct {
	ID           ID     `json:"id"`
	FullName     string `json:"fullName"`
	UserName     string `json:"userName,omitempty"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	DepartmentID ID     `json:"departmentId,omitempty"`
	IsDeleted    bool   `json:"isDeleted,omitempty"`
}

type Department struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	LiderID   ID     `json:"liderId,omitempty"`
	GestorID  ID     `json:"gestorId,omitempty"`
	Users     []User `json:"users,omitempty"`
	IsDeleted bool   `json:"isDeleted,omitempty"`
}

// ActiveUsers drops soft-deleted entries from the embedded user list.
func (d Department) ActiveUsers() []User {
	out := make([]User, 0, len(d.Users))
	for _, u := range d.Users {
		if !u.IsDeleted {
			out = append(out, u)
		}
	}
	return out
}
