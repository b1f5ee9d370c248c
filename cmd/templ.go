package cmd

const HELP_TEMPL = `{{.HelpName}} - {{.Usage}}
{{.Description}}
Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .Commands}}<command> {{end}}[arguments...]{{end}}
{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{end}}{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{end}}
{{end}}
Run "{{.HelpName}} help <command>" for the full description of a command.

`

const CMD_HELP_TEMPL = `{{.HelpName}} - {{.Usage}}
{{if .Description}}
{{.Description}}{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Options:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`
