package onboarding

// SetupWizardWelcome is printed before the first step
const SetupWizardWelcome = `
Recovery Tracker setup

This writes a recovery.yaml with storage, program and server settings.
Press Enter to accept the default shown in brackets.

`

// ConfigTemplate renders WizardConfig into recovery.yaml
const ConfigTemplate = `# Recovery Tracker configuration
# Generated on {{.Generated}}

server:
  address: 0.0.0.0
  port: {{.Port}}

storage:
  backend: {{.Backend}}
  data_dir: "{{.DataDir}}"

security:
  jwt_secret: "{{.JWTSecret}}"
  allow_origins:
    - "*"

recovery:
  timezone: "{{.Timezone}}"
  warmup: {{.Warmup}}
{{if .CatalogPath}}
catalog:
  path: "{{.CatalogPath}}"
  watch: {{.WatchCatalog}}
{{end}}
log:
  level: info
`

// SetupCompleteMessage is printed once the config is written
const SetupCompleteMessage = `
Setup complete.

  Config: {{.ConfigPath}}
  Data:   {{.DataDir}}

Start the API with:      recovery serve --data {{.DataDir}}
Mint a patient token:    recovery token --data {{.DataDir}} --patient <id>
`
