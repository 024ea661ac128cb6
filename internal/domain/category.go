package domain

type Category string

const (
	CatGraphics  Category = "GRAPHICS"
	CatTech      Category = "TECH"
	CatMarketing Category = "MARKETING"
	CatVideo     Category = "VIDEO"
	CatWriting   Category = "WRITING"
	CatMusic     Category = "MUSIC"
	CatBusiness  Category = "BUSINESS"
	CatFinance   Category = "FINANCE"
	CatAI        Category = "AI"
	CatGrowth    Category = "GROWTH"
)

type CategoryInfo struct {
	ID   Category `json:"id"`
	Name string   `json:"name"`
}

var categories = []CategoryInfo{
	{CatGraphics, "Graphics & Design"},
	{CatTech, "Programming & Tech"},
	{CatMarketing, "Digital Marketing"},
	{CatVideo, "Video & Animation"},
	{CatWriting, "Writing & Translation"},
	{CatMusic, "Music & Audio"},
	{CatBusiness, "Business"},
	{CatFinance, "Finance"},
	{CatAI, "AI Services"},
	{CatGrowth, "Personal Growth"},
}

// Categories returns a copy of the fixed category set in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	_, ok := c.lookup()
	return ok
}

// Label is the human-readable name, or the raw code when unknown.
func (c Category) Label() string {
	if info, ok := c.lookup(); ok {
		return info.Name
	}
	return string(c)
}

func (c Category) lookup() (CategoryInfo, bool) {
	for _, info := range categories {
		if info.ID == c {
			return info, true
		}
	}
	return CategoryInfo{}, false
}
