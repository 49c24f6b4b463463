package render

// jupyterConfigTemplate is the Python-syntax Jupyter server configuration.
// The token replaces the login page, so the file must stay private.
const jupyterConfigTemplate = `# Generated by labkit. Manual edits are overwritten on the next run.
c.ServerApp.ip = "127.0.0.1"
c.ServerApp.port = {{ .Port }}
c.ServerApp.open_browser = False
c.ServerApp.root_dir = {{ .NotebooksDir | quote }}
c.IdentityProvider.token = {{ .Token | quote }}
c.ServerApp.allow_remote_access = False
c.FileContentsManager.delete_to_trash = False
`

// shortcutTemplate is the HTML page that forwards the browser to the
// tokenized Jupyter URL.
const shortcutTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta http-equiv="refresh" content="0; url={{ .URL }}">
  <title>AI Lab</title>
</head>
<body>
  <p>Opening the lab&hellip; If nothing happens, follow
  <a href="{{ .URL }}">this link</a>.</p>
</body>
</html>
`

// backupLauncherShTemplate starts Jupyter manually when autostart is broken.
const backupLauncherShTemplate = `#!/bin/sh
# Generated by labkit. Starts the lab Jupyter server in the foreground.
exec {{ .PythonBin | squote }} -m jupyter lab \
    --config {{ .ConfigPath | squote }} \
    >> {{ .LogFile | squote }} 2>&1
`

// backupLauncherPS1Template is the Windows counterpart of the backup launcher.
const backupLauncherPS1Template = `# Generated by labkit. Starts the lab Jupyter server.
& {{ .PythonBin | squote }} -m jupyter lab --config {{ .ConfigPath | squote }} *>> {{ .LogFile | squote }}
`

