package domain

type Preferences struct {
	Theme                string   `json:"theme" validate:"oneof=system light dark"`
	DefaultCategory      Category `json:"default_category" validate:"oneof=personal work ideas todo other"`
	SortOrder            string   `json:"sort_order" validate:"oneof=updated_desc updated_asc created_desc title_asc"`
	AutoSync             bool     `json:"auto_sync"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Theme:                "system",
		DefaultCategory:      CategoryPersonal,
		SortOrder:            "updated_desc",
		AutoSync:             true,
		NotificationsEnabled: true,
	}
}
