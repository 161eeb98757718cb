package server

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>dialmix</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
</head>
<body>
    <main class="container">
        <h1>dialmix</h1>
        <p id="state">Waiting for the first cycle...</p>
        <div id="dials"></div>
    </main>
    <script>
        function render(report) {
            document.getElementById("state").textContent =
                "Cycle " + report.cycle + " at " + new Date(report.time).toLocaleTimeString();
            const dials = document.getElementById("dials");
            dials.innerHTML = "";
            for (const d of report.dials) {
                const article = document.createElement("article");
                const apps = d.sessions.map(s => s.path.split("/").pop() + " (" + s.pid + ")").join(", ");
                article.innerHTML =
                    "<header><strong></strong> " + (d.muted ? "🔇" : "🔊") + "</header>" +
                    "<progress max=\"100\"></progress><small></small>";
                article.querySelector("strong").textContent = d.name;
                article.querySelector("progress").value = d.percent;
                article.querySelector("small").textContent = apps || "no sessions";
                dials.appendChild(article);
            }
        }
        const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
        ws.onmessage = (event) => render(JSON.parse(event.data));
        ws.onclose = () => { document.getElementById("state").textContent = "Disconnected"; };
    </script>
</body>
</html>`
