package cv

// Document 表示正在编辑的一份简历：一个个人信息记录加七个有序集合。
type Document struct {
	Personal       Personal        `json:"personal"`
	Education      []Education     `json:"education" validate:"dive"`
	Experience     []Experience    `json:"experience" validate:"dive"`
	Skills         []Skill         `json:"skills" validate:"dive"`
	Projects       []Project       `json:"projects" validate:"dive"`
	Languages      []Language      `json:"languages" validate:"dive"`
	Certifications []Certification `json:"certifications" validate:"dive"`
	References     []Reference     `json:"references" validate:"dive"`
}

// Image 是头像的原始字节，只在保存/导出时随 multipart 上传。
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Personal 是文档中唯一的个人信息记录。
type Personal struct {
	ProfileImage   *Image `json:"-"`
	Name           string `json:"name"`
	Title          string `json:"title"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone" validate:"max=40"`
	Address        string `json:"address"`
	City           string `json:"city"`
	Country        string `json:"country"`
	PostalCode     string `json:"postalCode" validate:"max=20"`
	DateOfBirth    string `json:"dateOfBirth" validate:"omitempty,cvdate"`
	Nationality    string `json:"nationality"`
	DrivingLicense string `json:"drivingLicense"`
	Summary        string `json:"summary" validate:"max=4000"`
	LinkedIn       string `json:"linkedin" validate:"omitempty,url"`
	GitHub         string `json:"github" validate:"omitempty,url"`
	Portfolio      string `json:"portfolio" validate:"omitempty,url"`
}

type Education struct {
	Institution       string `json:"institution"`
	Degree            string `json:"degree"`
	Field             string `json:"field"`
	Location          string `json:"location"`
	StartDate         string `json:"startDate" validate:"omitempty,cvdate"`
	EndDate           string `json:"endDate" validate:"omitempty,cvdate"`
	GPA               string `json:"gpa" validate:"max=10"`
	Description       string `json:"description"`
	CurrentlyStudying bool   `json:"currentlyStudying"`
}

type Experience struct {
	Company          string   `json:"company"`
	Position         string   `json:"position"`
	Location         string   `json:"location"`
	StartDate        string   `json:"startDate" validate:"omitempty,cvdate"`
	EndDate          string   `json:"endDate" validate:"omitempty,cvdate"`
	CurrentlyWorking bool     `json:"currentlyWorking"`
	Description      string   `json:"description"`
	Achievements     []string `json:"achievements"`
}

type Skill struct {
	Name     string `json:"name"`
	Level    string `json:"level"`
	Category string `json:"category"`
}

type Project struct {
	Name         string `json:"name"`
	Technologies string `json:"technologies"`
	Description  string `json:"description"`
	StartDate    string `json:"startDate" validate:"omitempty,cvdate"`
	EndDate      string `json:"endDate" validate:"omitempty,cvdate"`
	LiveLink     string `json:"liveLink" validate:"omitempty,url"`
	GitHubLink   string `json:"githubLink" validate:"omitempty,url"`
	Role         string `json:"role"`
	TeamSize     string `json:"teamSize"`
}

type Language struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
	Level       string `json:"level"`
}

type Certification struct {
	Name          string `json:"name"`
	Issuer        string `json:"issuer"`
	IssueDate     string `json:"issueDate" validate:"omitempty,cvdate"`
	ExpiryDate    string `json:"expiryDate" validate:"omitempty,cvdate"`
	CredentialID  string `json:"credentialId"`
	CredentialURL string `json:"credentialUrl" validate:"omitempty,url"`
}

type Reference struct {
	Name         string `json:"name"`
	Position     string `json:"position"`
	Company      string `json:"company"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"max=40"`
	Relationship string `json:"relationship"`
}

// New 返回一份空文档，所有集合为非 nil 的空切片，保证 JSON 编码为 []。
func New() Document {
	return Document{
		Education:      []Education{},
		Experience:     []Experience{},
		Skills:         []Skill{},
		Projects:       []Project{},
		Languages:      []Language{},
		Certifications: []Certification{},
		References:     []Reference{},
	}
}

// Clone 深拷贝文档，异步保存/导出使用快照，不与后续编辑共享底层数组。
func (d Document) Clone() Document {
	out := Document{
		Personal:       d.Personal,
		Education:      cloneSlice(d.Education),
		Experience:     make([]Experience, len(d.Experience)),
		Skills:         cloneSlice(d.Skills),
		Projects:       cloneSlice(d.Projects),
		Languages:      cloneSlice(d.Languages),
		Certifications: cloneSlice(d.Certifications),
		References:     cloneSlice(d.References),
	}
	if img := d.Personal.ProfileImage; img != nil {
		cp := *img
		cp.Data = append([]byte(nil), img.Data...)
		out.Personal.ProfileImage = &cp
	}
	for i, e := range d.Experience {
		e.Achievements = append([]string{}, e.Achievements...)
		out.Experience[i] = e
	}
	return out
}

func cloneSlice[E any](in []E) []E {
	out := make([]E, len(in))
	copy(out, in)
	return out
}

// Normalize 把 nil 集合替换成空切片，解码后的文档与 New() 保持同一形态。
func (d *Document) Normalize() {
	if d.Education == nil {
		d.Education = []Education{}
	}
	if d.Experience == nil {
		d.Experience = []Experience{}
	}
	for i := range d.Experience {
		if d.Experience[i].Achievements == nil {
			d.Experience[i].Achievements = []string{}
		}
	}
	if d.Skills == nil {
		d.Skills = []Skill{}
	}
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	if d.Languages == nil {
		d.Languages = []Language{}
	}
	if d.Certifications == nil {
		d.Certifications = []Certification{}
	}
	if d.References == nil {
		d.References = []Reference{}
	}
}
