package resources

import "embed"

//go:embed migrations/*.sql i18n/*.yml wordlists/*.txt
var FS embed.FS
