package services

import "html/template"

var signInEmailTemplate = template.Must(template.New("signin").Parse(`<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Georgia, 'Times New Roman', serif; color: #3d3d3d; background: #faf7f2; margin: 0; padding: 0; }
        .card { max-width: 560px; margin: 40px auto; background: #ffffff; border-radius: 10px; overflow: hidden; border: 1px solid #ece4d8; }
        .banner { background: #b48a5a; color: #ffffff; padding: 32px 28px; text-align: center; }
        .banner h1 { margin: 0; font-size: 26px; font-weight: normal; letter-spacing: 1px; }
        .body { padding: 32px 28px; }
        .body p { margin: 0 0 18px 0; font-size: 16px; line-height: 1.6; }
        .cta { text-align: center; margin: 28px 0; }
        .cta a { display: inline-block; background: #b48a5a; color: #ffffff; padding: 14px 30px; border-radius: 6px; text-decoration: none; font-weight: bold; }
        .code { text-align: center; font-family: 'Courier New', monospace; font-size: 30px; letter-spacing: 8px; background: #f6f1ea; padding: 16px; border-radius: 6px; margin: 20px 0; }
        .muted { font-size: 13px; color: #8a8078; word-break: break-all; }
        .footer { padding: 20px 28px; border-top: 1px solid #ece4d8; font-size: 12px; color: #a0968d; text-align: center; }
    </style>
</head>
<body>
    <div class="card">
        <div class="banner">
            <h1>Wedding Photos</h1>
        </div>
        <div class="body">
            <p>Hi {{.Name}},</p>
            <p>Use the button below to sign in and share your photos and videos from the day.</p>
            <div class="cta">
                <a href="{{.Link}}">Sign in</a>
            </div>
            <p>Or enter this code on the sign-in page:</p>
            <div class="code">{{.Code}}</div>
            <p class="muted">This link expires in {{.ExpiresInMinutes}} minutes and can be used once. If the button does not work, paste this address into your browser: {{.Link}}</p>
        </div>
        <div class="footer">
            You received this email because someone asked to sign in with this address. If it was not you, ignore it.
        </div>
    </div>
</body>
</html>
`))

// SignInEmailData fills the sign-in email
type SignInEmailData struct {
	Name             string
	Link             string
	Code             string
	ExpiresInMinutes int
}
