package controller

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/types"
)

// The DDC frame auto-posts {Bin, JWT} to the provider and relays the
// out-of-band session-reference message (and any other frame content, for
// the scanner) back to this service.
var ddcPageTemplate = template.Must(template.New("ddc").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Device Data Collection</title></head>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.URL}}" style="display:none">
<input type="hidden" name="Bin" value="{{.Bin}}">
<input type="hidden" name="JWT" value="{{.JWT}}">
</form>
<script>
window.addEventListener("message", function (event) {
  var payload = { refid: {{.Refid}}, colref: "", content: "" };
  try {
    var data = JSON.parse(event.data);
    if (data && data.SessionId) {
      payload.colref = data.SessionId;
    } else {
      payload.content = String(event.data);
    }
  } catch (e) {
    payload.content = String(event.data);
  }
  fetch("/ddc/events", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify(payload)
  });
});
</script>
</body>
</html>
`))

// The challenge frame auto-posts {JWT, MD} to the bank ACS and forwards the
// completion signal to the embedding page. No timeout at this layer; the
// wait is bounded by cardholder interaction.
var challengePageTemplate = template.Must(template.New("challenge").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Card Authentication</title></head>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.URL}}" style="display:none">
<input type="hidden" name="JWT" value="{{.JWT}}">
<input type="hidden" name="MD" value="{{.MD}}">
</form>
<script>
window.addEventListener("message", function (event) {
  var data;
  try {
    data = JSON.parse(event.data);
  } catch (e) {
    return;
  }
  if (data && (data.MessageType === "3dsauthenticated" || data.Status === true)) {
    window.parent.postMessage(JSON.stringify({
      messageType: "3dsauthenticated",
      refid: {{.Refid}},
      transactionReference: data.TransactionId || ""
    }), "*");
  }
});
</script>
</body>
</html>
`))

func (c *PaymentController) DdcPage(ctx echo.Context) error {
	req := types.NewDdcPageRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	if err := ddcPageTemplate.Execute(&buf, req); err != nil {
		c.logger.WithError(err).Error("DDC page render failed")
		return c.writeError(ctx, http.StatusInternalServerError, "render failed")
	}
	return ctx.HTML(http.StatusOK, buf.String())
}

func (c *PaymentController) ChallengePage(ctx echo.Context) error {
	req := types.NewChallengePageRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	if err := challengePageTemplate.Execute(&buf, req); err != nil {
		c.logger.WithError(err).Error("Challenge page render failed")
		return c.writeError(ctx, http.StatusInternalServerError, "render failed")
	}
	return ctx.HTML(http.StatusOK, buf.String())
}
