package server

import (
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades GET requests to WebSocket and hands the new
// client to the hub, which starts its pumps and announces the roster.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr)
	if !s.hub.Join(client) {
		s.log.Info("hub stopped; refusing connection", "addr", r.RemoteAddr)
		_ = conn.Close()
	}
}

// HealthHandler responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GoChat server is running!")
}

// TestPageHandler serves a minimal HTML client for exercising the relay by
// hand: pick a name and channel, send messages, load history, watch the roster.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>GoChat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        #users { color: #555; margin: 10px 0; }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>GoChat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="nameInput" placeholder="Display name">
        <button onclick="setName()">Set name</button>
        <input type="text" id="channelInput" value="Chat">
        <button onclick="loadHistory()">Join channel</button>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>

    <div id="users"></div>
    <div id="messages"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message or /clear N..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const usersDiv = document.getElementById('users');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function channel() {
            return document.getElementById('channelInput').value || 'Chat';
        }

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function showMessage(m) {
            if (m.channel !== channel()) {
                return;
            }
            const body = m.type === 'file' ? '[file ' + (m.fileType || 'unknown') + ']' : m.content;
            addLine(new Date(m.timestamp).toLocaleTimeString() + ' ' + m.username + ': ' + body, 'green');
        }

        function retract(n) {
            const lines = messagesDiv.querySelectorAll('div[style*="green"]');
            for (let i = lines.length - 1; i >= 0 && n > 0; i--, n--) {
                lines[i].remove();
            }
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                addLine('Connected to GoChat server');
                updateStatus(true);
                loadHistory();
            };

            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                switch (frame.type) {
                case 'message':
                case 'file':
                    showMessage(frame);
                    break;
                case 'history':
                    messagesDiv.innerHTML = '';
                    frame.messages.forEach(showMessage);
                    break;
                case 'users':
                    usersDiv.textContent = 'Online: ' + frame.users.join(', ');
                    break;
                case 'clearMessages':
                    if (frame.channel === channel()) {
                        retract(frame.numMessages);
                    }
                    break;
                }
            };

            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false);
                ws = null;
            };

            ws.onerror = function() {
                addLine('Connection error');
                updateStatus(false);
            };
        }

        function send(frame) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(frame));
            }
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function setName() {
            send({type: 'setUsername', username: document.getElementById('nameInput').value});
        }

        function loadHistory() {
            send({type: 'getHistory', channel: channel()});
        }

        function sendMessage() {
            const content = messageInput.value.trim();
            if (content) {
                send({type: 'message', channel: channel(), content: content, isPreFormatted: false});
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
