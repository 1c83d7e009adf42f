package research

import "github.com/vestigolabs/vestigo/internal/models"

// BuiltinTasks returns the five standing lines of inquiry run for every
// subject. Query templates substitute the subject name for %s.
func BuiltinTasks() []models.ResearchTask {
	return []models.ResearchTask{
		{
			ID:        1,
			Name:      "commercial",
			Objective: "What the subject sells, to whom, and how it positions itself in its market",
			Keywords:  []string{"product", "service", "customer", "market", "pricing", "competitor"},
			QueryTemplates: []string{
				"%s products and services",
				"%s customers market position",
			},
			SiteScoped: true,
		},
		{
			ID:        2,
			Name:      "financial",
			Objective: "Revenue, funding, ownership, and overall financial condition",
			Keywords:  []string{"revenue", "funding", "investment", "profit", "annual report", "shareholder"},
			QueryTemplates: []string{
				"%s revenue funding",
				"%s annual report financials",
			},
		},
		{
			ID:        3,
			Name:      "legal",
			Objective: "Registration status, litigation, regulatory actions, and compliance posture",
			Keywords:  []string{"lawsuit", "litigation", "regulator", "compliance", "registration", "penalty"},
			QueryTemplates: []string{
				"%s lawsuit litigation",
				"%s regulatory compliance",
			},
		},
		{
			ID:        4,
			Name:      "team",
			Objective: "Founders, leadership, headcount, and notable personnel changes",
			Keywords:  []string{"founder", "ceo", "leadership", "executive", "employees", "hiring"},
			QueryTemplates: []string{
				"%s founders leadership team",
				"%s executives hiring",
			},
			SiteScoped: true,
		},
		{
			ID:        5,
			Name:      "technology",
			Objective: "Technology stack, intellectual property, and engineering footprint",
			Keywords:  []string{"technology", "platform", "patent", "engineering", "open source", "api"},
			QueryTemplates: []string{
				"%s technology platform",
				"%s patents engineering",
			},
		},
	}
}
